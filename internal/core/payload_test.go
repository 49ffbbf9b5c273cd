package core

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"mime/multipart"
	"strings"
	"testing"
)

func payloadFixture() (*Session, DatasetDefinition, *ValidatedRow) {
	def := DatasetDefinition{
		Key:    "parts",
		Format: PayloadMultipart,
		Columns: []ColumnDefinition{
			{Field: "sku", Header: "SKU"},
			{Field: "qty", Header: "Qty"},
			{Field: "internal_ref", Header: "Internal Ref"},
			{Field: "photo", Header: "Photo", Kind: KindImage},
		},
		ExcludePayloadFields: []string{"internal_ref"},
	}
	vr := &ValidatedRow{
		Row:   2,
		Data:  RowData{"sku": "W-1", "qty": "5", "internal_ref": "x9"},
		Valid: true,
	}
	sess := &Session{
		overrides: map[cellKey]string{},
		images:    map[cellKey]*FileHandle{},
	}
	return sess, def, vr
}

func TestMergedRow_OverlayWinsWithoutMutatingData(t *testing.T) {
	sess, def, vr := payloadFixture()
	sess.overrides[cellKey{Row: 2, Field: "qty"}] = "7"
	sess.overrides[cellKey{Row: 3, Field: "qty"}] = "99" // different row

	row := mergedRow(sess, def, vr)
	if row["qty"] != "7" {
		t.Errorf("qty = %q, want overlay value 7", row["qty"])
	}
	if row["sku"] != "W-1" {
		t.Errorf("sku = %q, want parsed value", row["sku"])
	}
	if vr.Data["qty"] != "5" {
		t.Errorf("parsed data mutated: qty = %q", vr.Data["qty"])
	}
}

func TestBuildPayload_ExcludesFieldsAndCarriesImages(t *testing.T) {
	sess, def, vr := payloadFixture()
	fh := &FileHandle{Name: "w1.png", ContentType: "image/png", Data: []byte{0x89}}
	sess.images[cellKey{Row: 2, Field: "photo"}] = fh

	p, err := buildPayload(context.Background(), sess, def, vr)
	if err != nil {
		t.Fatalf("buildPayload error: %v", err)
	}
	if _, ok := p.Fields["internal_ref"]; ok {
		t.Error("excluded field leaked into payload")
	}
	if _, ok := p.Fields["photo"]; ok {
		t.Error("image column must not appear as a text field")
	}
	if p.Fields["sku"] != "W-1" || p.Fields["qty"] != "5" {
		t.Errorf("fields = %+v", p.Fields)
	}
	if p.Files["photo"] != fh {
		t.Error("attached image missing from payload files")
	}
}

func TestBuildPayload_AttachmentGenerator(t *testing.T) {
	sess, def, vr := payloadFixture()
	def.Attachments = map[string]AttachmentFunc{
		"manifest": func(ctx context.Context, row RowData) (*FileHandle, error) {
			return &FileHandle{
				Name:        "manifest.json",
				ContentType: "application/json",
				Data:        []byte(`{"sku":"` + row["sku"] + `"}`),
			}, nil
		},
		"skipped": func(ctx context.Context, row RowData) (*FileHandle, error) {
			return nil, nil
		},
	}

	p, err := buildPayload(context.Background(), sess, def, vr)
	if err != nil {
		t.Fatalf("buildPayload error: %v", err)
	}
	m := p.Files["manifest"]
	if m == nil || !strings.Contains(string(m.Data), "W-1") {
		t.Errorf("manifest = %+v, want generated file with row data", m)
	}
	if _, ok := p.Files["skipped"]; ok {
		t.Error("nil attachment must be omitted")
	}
}

func TestBuildPayload_AttachmentFailureFailsRow(t *testing.T) {
	sess, def, vr := payloadFixture()
	boom := errors.New("boom")
	def.Attachments = map[string]AttachmentFunc{
		"manifest": func(ctx context.Context, row RowData) (*FileHandle, error) {
			return nil, boom
		},
	}

	if _, err := buildPayload(context.Background(), sess, def, vr); !errors.Is(err, boom) {
		t.Errorf("got %v, want the generator error", err)
	}
}

func TestEncodeJSON(t *testing.T) {
	p := &Payload{
		Format: PayloadJSON,
		Fields: map[string]string{"sku": "W-1", "qty": "5"},
	}
	data, err := p.EncodeJSON()
	if err != nil {
		t.Fatalf("EncodeJSON error: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got["sku"] != "W-1" || got["qty"] != "5" {
		t.Errorf("decoded = %+v", got)
	}
}

func TestEncodeMultipart(t *testing.T) {
	p := &Payload{
		Format: PayloadMultipart,
		Fields: map[string]string{"sku": "W-1"},
		Files: map[string]*FileHandle{
			"photo": {Name: "w1.png", ContentType: "image/png", Data: []byte("img-bytes")},
		},
	}

	body, contentType, err := p.EncodeMultipart()
	if err != nil {
		t.Fatalf("EncodeMultipart error: %v", err)
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "multipart/form-data" {
		t.Fatalf("content type = %q (%v)", contentType, err)
	}

	mr := multipart.NewReader(strings.NewReader(string(body)), params["boundary"])
	form, err := mr.ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("ReadForm error: %v", err)
	}
	defer form.RemoveAll()

	if got := form.Value["sku"]; len(got) != 1 || got[0] != "W-1" {
		t.Errorf("sku part = %v", got)
	}
	files := form.File["photo"]
	if len(files) != 1 || files[0].Filename != "w1.png" {
		t.Fatalf("photo part = %+v", files)
	}
}
