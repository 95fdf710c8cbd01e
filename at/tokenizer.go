package at

import (
	"bufio"
	"bytes"
	"strings"
)

// Splitter is used for tokenizing AT command modem responses. It uses
// the signature of bufio.SplitFunc so it can be directly used with bufio.Scanner.
//
// It splits the input by CRLF line endings and also
// recognizes the SMS input prompt ("> ").
//
// The atEOF parameter indicates whether any more data will be available.
// When true, any remaining data is returned as the final token.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	// 1. Match SMS Prompt
	if bytes.HasPrefix(data, []byte(Prompt)) {
		return len(Prompt), data[0:len(Prompt)], nil
	}

	// 2. Match standard line ending with CRLF
	if i := bytes.Index(data, []byte(CRLF)); i >= 0 {
		return i + len(CRLF), data[0:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

// Classify identifies the nature of the modem output
func Classify(line string) ResponseType {
	if line == Prompt {
		return TypePrompt
	}

	// Direct matches for final results
	switch line {
	case OK, ERROR, NoCarrier, NoDialtone, Busy, NoAnswer:
		return TypeFinal
	}

	// Prefix matches
	switch {
	case strings.HasPrefix(line, CmeError), strings.HasPrefix(line, CmsError):
		return TypeFinal
	case strings.HasPrefix(line, UrcNewMsg),
		strings.HasPrefix(line, UrcSMSDeliver),
		strings.HasPrefix(line, UrcMessageReport),
		line == UrcCall:
		return TypeURC
	default:
		return TypeData
	}
}

// Lines tokenizes a complete chunk of modem output with Splitter and returns
// the non-empty lines. The SMS prompt is kept verbatim, everything else is
// trimmed.
func Lines(raw string) []string {
	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Split(Splitter)

	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if line != Prompt {
			line = strings.TrimSpace(line)
		}
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
