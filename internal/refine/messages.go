package refine

import (
	"errors"
	"strconv"
	"strings"

	"github.com/klytics/sheetkit/internal/ai"
	"github.com/klytics/sheetkit/internal/formats/xlsx"
	"github.com/klytics/sheetkit/internal/prompt"
)

// Code identifies a class of user-facing failure.
type Code string

const (
	CodeOK           Code = ""
	CodeInstruction  Code = "empty_instruction"
	CodeNoTable      Code = "no_table"
	CodeNotATable    Code = "not_a_table"
	CodeLoad         Code = "load_failed"
	CodeExport       Code = "export_failed"
	CodeRateLimited  Code = "rate_limited"
	CodeProvider     Code = "provider_error"
	CodeTransport    Code = "transport_failure"
	CodeUnclassified Code = "error"
)

// Classify maps a pipeline error to its Code.
func Classify(err error) Code {
	var loadErr *xlsx.LoadError
	var exportErr *xlsx.ExportError
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, prompt.ErrEmptyInstruction):
		return CodeInstruction
	case errors.Is(err, prompt.ErrNilTable):
		return CodeNoTable
	case errors.Is(err, ErrNotATable):
		return CodeNotATable
	case errors.As(err, &loadErr):
		return CodeLoad
	case errors.As(err, &exportErr):
		return CodeExport
	case errors.Is(err, ai.ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ai.ErrProvider):
		return CodeProvider
	case errors.Is(err, ai.ErrTransport):
		return CodeTransport
	}
	return CodeUnclassified
}

// UserMessage turns a pipeline error into one line a user can act on. Every
// failure class gets its own wording so a rate limit is never mistaken for a
// bad key or a dead network.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	aiErr := &ai.Error{}
	errors.As(err, &aiErr)

	switch Classify(err) {
	case CodeInstruction:
		return "Please type an instruction describing what to do with the table."
	case CodeNoTable:
		return "Load a spreadsheet before sending an instruction."
	case CodeNotATable:
		return "The AI reply could not be read as a table. " + strings.TrimPrefix(err.Error(), ErrNotATable.Error()+": ")
	case CodeLoad:
		return "Could not read the spreadsheet: " + cause(err) + ". Check that it is a valid .xlsx file with a header row."
	case CodeExport:
		return "Could not create the spreadsheet file: " + cause(err) + "."
	case CodeRateLimited:
		msg := "The AI provider's quota or rate limit was reached. Wait a moment and submit again."
		if aiErr.Message != "" {
			msg += " (" + aiErr.Provider + ": " + aiErr.Message + ")"
		}
		return msg
	case CodeProvider:
		msg := "The AI provider rejected the request"
		if aiErr.Status != 0 {
			msg += " with HTTP " + strconv.Itoa(aiErr.Status)
		}
		if aiErr.Message != "" {
			msg += ": " + aiErr.Message
		}
		return msg + ". Check the API key, model name and provider settings."
	case CodeTransport:
		detail := aiErr.Message
		if detail == "" && aiErr.Err != nil {
			detail = aiErr.Err.Error()
		}
		msg := "Could not reach the AI provider"
		if detail != "" {
			msg += " (" + detail + ")"
		}
		return msg + ". Check the network connection and try again."
	}
	return err.Error()
}

func cause(err error) string {
	var loadErr *xlsx.LoadError
	if errors.As(err, &loadErr) && loadErr.Err != nil {
		return loadErr.Err.Error()
	}
	var exportErr *xlsx.ExportError
	if errors.As(err, &exportErr) && exportErr.Err != nil {
		return exportErr.Err.Error()
	}
	return err.Error()
}
