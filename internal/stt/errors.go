package stt

import "errors"

var errNoStream = errors.New("stt: failed to create offline stream")
