// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package userfacing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/matt-FFFFFF/upscaler/internal/batchfile"
	"github.com/matt-FFFFFF/upscaler/internal/job"
	"github.com/matt-FFFFFF/upscaler/internal/model"
	"github.com/matt-FFFFFF/upscaler/internal/upscale"
)

// Error codes.
const (
	CodeNotFound          = "IO-001"
	CodePermission        = "IO-002"
	CodeCancelled         = "CANCEL-001"
	CodeModelNotInstalled = "MODEL-009"
	CodeModelFailed       = "MODEL-010"
	CodeModelEntrypoint   = "MODEL-011"
	CodeInvalidInput      = "APP-002"
	CodeUnknown           = "APP-001"
)

// Error is an error described for an operator.
type Error struct {
	Title          string
	Summary        string
	SuggestedFixes []string
	Code           string
	CanRetry       bool
	// Cause is the error this one describes.
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (code %s)", e.Summary, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// String renders e over several lines, fixes as a bulleted list.
func (e *Error) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s: %s (code %s)", e.Title, e.Summary, e.Code)

	for _, fix := range e.SuggestedFixes {
		fmt.Fprintf(&b, "\n  - %s", fix)
	}

	return b.String()
}

// From describes err. An err that already is, or wraps, an *Error is returned as that *Error.
// A nil err yields nil.
func From(err error) *Error {
	if err == nil {
		return nil
	}

	var ufe *Error
	if errors.As(err, &ufe) {
		return ufe
	}

	switch {
	case errors.Is(err, upscale.ErrRunCancelled),
		errors.Is(err, job.ErrJobCancelled),
		errors.Is(err, context.Canceled):
		return &Error{
			Title:   "Run cancelled",
			Summary: "The run was cancelled and its partial outputs were removed.",
			SuggestedFixes: []string{
				"Start the run again when ready.",
			},
			Code:     CodeCancelled,
			CanRetry: true,
			Cause:    err,
		}

	case errors.Is(err, os.ErrNotExist),
		errors.Is(err, upscale.ErrInputNotFound),
		errors.Is(err, model.ErrInputMissing):
		return &Error{
			Title:   "File not found",
			Summary: "We couldn't find one of the files needed for this run.",
			SuggestedFixes: []string{
				"Verify the file still exists in its original location.",
				"Re-add the file to the list and try again.",
			},
			Code:     CodeNotFound,
			CanRetry: true,
			Cause:    err,
		}

	case errors.Is(err, os.ErrPermission):
		return &Error{
			Title:   "Access denied",
			Summary: "We don't have permission to read one of the selected files.",
			SuggestedFixes: []string{
				"Move the file to a readable location.",
				"Check file permissions and try again.",
			},
			Code:     CodePermission,
			CanRetry: true,
			Cause:    err,
		}

	case errors.Is(err, model.ErrWeightsMissing), errors.Is(err, model.ErrNotInstalled):
		return &Error{
			Title:   "Model not installed",
			Summary: "The selected model is not installed in the model cache.",
			SuggestedFixes: []string{
				"Install the model and try again.",
				"Check the model cache directory setting.",
			},
			Code:     CodeModelNotInstalled,
			CanRetry: true,
			Cause:    err,
		}

	case errors.Is(err, model.ErrEntrypointMissing):
		return &Error{
			Title:   "Model entrypoint missing",
			Summary: "The model's entrypoint script could not be found.",
			SuggestedFixes: []string{
				"Reinstall the model.",
			},
			Code:     CodeModelEntrypoint,
			CanRetry: false,
			Cause:    err,
		}

	case errors.Is(err, model.ErrInferenceFailed):
		return &Error{
			Title:   "Model inference failed",
			Summary: "The model process exited with an error.",
			SuggestedFixes: []string{
				"Check the log output for the model's error message.",
				"Try CPU compute or a smaller tile size.",
			},
			Code:     CodeModelFailed,
			CanRetry: true,
			Cause:    err,
		}

	case errors.Is(err, batchfile.ErrFetch):
		return &Error{
			Title:   "Batch file unavailable",
			Summary: "We couldn't retrieve the batch file.",
			SuggestedFixes: []string{
				"Check the path or URL of the batch file.",
				"For remote sources, check network access and credentials.",
			},
			Code:     CodeNotFound,
			CanRetry: true,
			Cause:    err,
		}

	case errors.Is(err, batchfile.ErrParse),
		errors.Is(err, batchfile.ErrInvalid),
		errors.Is(err, batchfile.ErrNoInputs):
		return &Error{
			Title:   "Invalid batch file",
			Summary: "The batch file could not be used.",
			SuggestedFixes: []string{
				"Fix the fields named in the log output.",
				"Make sure every input names a supported image or a directory holding some.",
			},
			Code:     CodeInvalidInput,
			CanRetry: false,
			Cause:    err,
		}

	case errors.Is(err, upscale.ErrInvalidScale), errors.Is(err, job.ErrInvalidArgument):
		return &Error{
			Title:   "Invalid settings",
			Summary: "The run settings are not valid.",
			SuggestedFixes: []string{
				"Use a scale of at least 1.",
			},
			Code:     CodeInvalidInput,
			CanRetry: false,
			Cause:    err,
		}
	}

	return &Error{
		Title:   "Something went wrong",
		Summary: "We couldn't complete the request.",
		SuggestedFixes: []string{
			"Try again in a moment.",
			"If the issue persists, check the logs for details.",
		},
		Code:     CodeUnknown,
		CanRetry: true,
		Cause:    err,
	}
}
