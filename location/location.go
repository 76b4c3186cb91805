// Package location resolves an Issue.Path string back to a line/column
// position in the original JSON source, for Options.TrackPositions.
package location

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Position is a 1-indexed line/column pair.
type Position struct {
	Line   int
	Column int
}

// Find locates path (the same dotted/"[index]" convention runtime.Run
// builds Issue.Path with, e.g. "name[0].given") within jsonData, returning
// nil if the path can't be resolved (a malformed document, or a path
// segment that doesn't exist by the time TrackPositions does its own
// independent re-walk).
func Find(jsonData []byte, path string) *Position {
	if len(jsonData) == 0 {
		return nil
	}
	segments := splitPath(path)
	if len(segments) == 0 {
		return &Position{Line: 1, Column: 1}
	}

	dec := json.NewDecoder(strings.NewReader(string(jsonData)))
	offset, err := navigateToPath(dec, segments)
	if err != nil {
		return nil
	}

	line, col := offsetToLineCol(jsonData, offset)
	return &Position{Line: line, Column: col}
}

// splitPath turns "identifier[0].value" into ["identifier", "0", "value"].
func splitPath(path string) []string {
	var segments []string
	current := ""
	for i := 0; i < len(path); i++ {
		switch ch := path[i]; ch {
		case '.':
			if current != "" {
				segments = append(segments, current)
				current = ""
			}
		case '[':
			if current != "" {
				segments = append(segments, current)
				current = ""
			}
			j := i + 1
			for j < len(path) && path[j] != ']' {
				j++
			}
			if j > i+1 {
				segments = append(segments, path[i+1:j])
			}
			i = j
		default:
			current += string(ch)
		}
	}
	if current != "" {
		segments = append(segments, current)
	}
	return segments
}

func navigateToPath(dec *json.Decoder, segments []string) (int, error) {
	var offset int
	var err error
	for _, seg := range segments {
		if idx, convErr := strconv.Atoi(seg); convErr == nil {
			offset, err = navigateToArrayIndex(dec, idx)
		} else {
			offset, err = navigateToKey(dec, seg)
		}
		if err != nil {
			return 0, err
		}
	}
	return offset, nil
}

func navigateToKey(dec *json.Decoder, key string) (int, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return 0, err
		}
		offset := int(dec.InputOffset())
		if k, ok := tok.(string); ok && k == key {
			return offset, nil
		}
		if delim, ok := tok.(json.Delim); ok {
			switch delim {
			case '[':
				if err := skipRest(dec); err != nil {
					return 0, err
				}
			case '}', ']':
				return 0, errPathNotFound
			}
		}
	}
}

func navigateToArrayIndex(dec *json.Decoder, targetIdx int) (int, error) {
	tok, err := dec.Token()
	if err != nil {
		return 0, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return 0, errPathNotFound
	}

	idx := 0
	for dec.More() {
		offset := int(dec.InputOffset())
		if idx == targetIdx {
			return offset, nil
		}
		if err := skipValue(dec); err != nil {
			return 0, err
		}
		idx++
	}
	return 0, errPathNotFound
}

func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if _, ok := tok.(json.Delim); ok {
		return skipRest(dec)
	}
	return nil
}

func skipRest(dec *json.Decoder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if delim, ok := tok.(json.Delim); ok {
			switch delim {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}

func offsetToLineCol(input []byte, offset int) (line, col int) {
	line, col = 1, 1
	for i := 0; i < offset && i < len(input); i++ {
		if input[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return
}

type pathNotFoundError struct{}

func (pathNotFoundError) Error() string { return "path not found" }

var errPathNotFound = pathNotFoundError{}
