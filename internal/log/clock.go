package log

import "time"

var nowFunc = time.Now
