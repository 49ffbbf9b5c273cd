package core

// payload.go assembles the outbound representation of one row: parsed data
// merged with edit overlays, minus excluded fields, plus image attachments
// and generated files for multipart datasets.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
)

// mergedRow flattens a validated row through the session's edit overlay.
func mergedRow(sess *Session, def DatasetDefinition, vr *ValidatedRow) RowData {
	out := vr.Data.Clone()
	for _, col := range def.Columns {
		if v, ok := sess.overrides[cellKey{Row: vr.Row, Field: col.Field}]; ok {
			out[col.Field] = v
		}
	}
	return out
}

// buildPayload produces the upload payload for one row. Attachment generators
// run here so a generator failure fails only this row.
func buildPayload(ctx context.Context, sess *Session, def DatasetDefinition, vr *ValidatedRow) (*Payload, error) {
	row := mergedRow(sess, def, vr)

	p := &Payload{
		Format: def.Format,
		Fields: make(map[string]string, len(row)),
		Files:  make(map[string]*FileHandle),
	}

	for _, col := range def.Columns {
		if isImageColumn(col) {
			if fh, ok := sess.images[cellKey{Row: vr.Row, Field: col.Field}]; ok {
				p.Files[col.Field] = fh
			}
			continue
		}
		if def.payloadExcluded(col.Field) {
			continue
		}
		p.Fields[col.Field] = row[col.Field]
	}

	for name, gen := range def.Attachments {
		fh, err := gen(ctx, row)
		if err != nil {
			return nil, fmt.Errorf("attachment %s: %w", name, err)
		}
		if fh != nil {
			p.Files[name] = fh
		}
	}

	return p, nil
}

// EncodeJSON renders the payload fields as a JSON object. Files are ignored;
// JSON datasets should not carry attachments.
func (p *Payload) EncodeJSON() ([]byte, error) {
	return json.Marshal(p.Fields)
}

// EncodeMultipart renders the payload as multipart/form-data and returns the
// body together with its content type, boundary included.
func (p *Payload) EncodeMultipart() ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for name, value := range p.Fields {
		if err := mw.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", name, err)
		}
	}
	for name, fh := range p.Files {
		fw, err := mw.CreateFormFile(name, fh.Name)
		if err != nil {
			return nil, "", fmt.Errorf("create file part %s: %w", name, err)
		}
		if _, err := fw.Write(fh.Data); err != nil {
			return nil, "", fmt.Errorf("write file part %s: %w", name, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
