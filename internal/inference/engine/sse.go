package engine

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// ReadSSE parses a text/event-stream body and calls onEvent once per event.
// Returning an error from onEvent stops the read.
func ReadSSE(r io.Reader, onEvent func(event string, data string) error) error {
	br := bufio.NewReader(r)
	var (
		eventName string
		dataLines []string
	)

	flush := func() error {
		if len(dataLines) == 0 {
			eventName = ""
			return nil
		}
		data := strings.Join(dataLines, "\n")
		dataLines = nil
		ev := eventName
		eventName = ""
		if onEvent == nil {
			return nil
		}
		return onEvent(ev, data)
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if strings.TrimSpace(line) != "" {
					consumeLine(strings.TrimRight(line, "\r\n"), &eventName, &dataLines)
				}
				return flush()
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		// Blank line ends event.
		if line == "" {
			if err := flush(); err != nil {
				return err
			}
			continue
		}
		consumeLine(line, &eventName, &dataLines)
	}
}

func consumeLine(line string, eventName *string, dataLines *[]string) {
	switch {
	case strings.HasPrefix(line, ":"):
		// comment
	case strings.HasPrefix(line, "event:"):
		*eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
	case strings.HasPrefix(line, "data:"):
		v := strings.TrimPrefix(line, "data:")
		v = strings.TrimPrefix(v, " ")
		*dataLines = append(*dataLines, v)
	}
}
