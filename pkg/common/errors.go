package common

import (
	"net/http"

	"github.com/ansel1/merry"
)

// Sentinel errors. Each carries the HTTP status the API answers with.
// Call sites attach context with WithValue; compare with errors.Is or merry.Is.
var (
	ErrInvalidInterval = merry.New("interval start must be less than end").WithHTTPCode(http.StatusBadRequest)
	ErrInvalidBinCount = merry.New("bin count must be at least 1").WithHTTPCode(http.StatusBadRequest)
	ErrUnknownPolicy   = merry.New("unknown partition policy").WithHTTPCode(http.StatusBadRequest)
	ErrUnknownFunction = merry.New("unknown target function").WithHTTPCode(http.StatusBadRequest)

	// ErrNoRepresentable aborts a run: nothing can be fitted.
	ErrNoRepresentable = merry.New("no bf16 values in interval").WithHTTPCode(http.StatusUnprocessableEntity)
	ErrTooFewPoints    = merry.New("fewer bf16 values than bins").WithHTTPCode(http.StatusUnprocessableEntity)
	ErrNonFiniteTarget = merry.New("target function has no finite bf16 value").WithHTTPCode(http.StatusUnprocessableEntity)

	ErrNoTable        = merry.New("no table generated yet").WithHTTPCode(http.StatusNotFound)
	ErrCorruptPayload = merry.New("corrupt archived payload").WithHTTPCode(http.StatusInternalServerError)
)
