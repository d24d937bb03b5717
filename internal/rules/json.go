package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

func decodeJSON(data []byte) (*document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	root, err := decodeJSONValue(dec)
	if err != nil {
		return nil, &ConfigValidationError{Reason: "malformed JSON", Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &ConfigValidationError{Reason: "malformed JSON", Err: errors.New("trailing data after document")}
	}
	return &document{root: root}, nil
}

// decodeJSONValue walks the token stream so object keys keep their order.
func decodeJSONValue(dec *json.Decoder) (value, error) {
	tok, err := dec.Token()
	if err != nil {
		return value{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			v := value{kind: kindMap}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return value{}, fmt.Errorf("expected object key, got %v", keyTok)
				}
				val, err := decodeJSONValue(dec)
				if err != nil {
					return value{}, err
				}
				v.entries = append(v.entries, entry{key: key, val: val})
			}
			if _, err := dec.Token(); err != nil {
				return value{}, err
			}
			return v, nil
		case '[':
			v := value{kind: kindList}
			for dec.More() {
				item, err := decodeJSONValue(dec)
				if err != nil {
					return value{}, err
				}
				v.list = append(v.list, item)
			}
			if _, err := dec.Token(); err != nil {
				return value{}, err
			}
			return v, nil
		}
		return value{}, fmt.Errorf("unexpected delimiter %v", t)
	case string:
		return value{kind: kindString, text: t}, nil
	case json.Number:
		return value{kind: kindNumber, text: t.String()}, nil
	case bool:
		return value{kind: kindBool, boolean: t}, nil
	case nil:
		return value{kind: kindNull}, nil
	}
	return value{}, fmt.Errorf("unexpected token %v", tok)
}
