package document

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

type pdfInfo struct {
	Title  string
	Author string
}

// readPDFInfo pulls Title and Author out of the document info dictionary.
// The parser panics on some malformed files, so the whole read is guarded.
func readPDFInfo(data []byte) (info pdfInfo, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf info: %v", r)
		}
	}()

	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return pdfInfo{}, err
	}

	trailer := pdfReader.Trailer()
	if trailer.IsNull() {
		return pdfInfo{}, nil
	}
	dict := trailer.Key("Info")
	if dict.IsNull() {
		return pdfInfo{}, nil
	}
	info.Title = stringValue(dict.Key("Title"))
	info.Author = stringValue(dict.Key("Author"))
	return info, nil
}

func stringValue(v pdf.Value) string {
	if v.Kind() != pdf.String {
		return ""
	}
	return v.Text()
}
