// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import (
	"errors"
	"fmt"
	"log"
)

func Example() {
	f, err := Open("perf.data", Options{EventOrder: EventOrderTime})
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	for {
		eb, err := f.ReadEvent()
		if errors.Is(err, ErrEndOfFile) {
			break
		}
		if err != nil {
			log.Fatal(err)
		}
		if eb.Type() == RecordTypeSample {
			info, err := f.GetSampleInfo(eb)
			if err != nil {
				continue
			}
			fmt.Printf("sample: pid=%d tid=%d ip=%#x\n", info.PID, info.TID, info.IP)
		}
	}
}
