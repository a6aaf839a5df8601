package storage

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestDatabaseFromURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"mongodb://localhost:27017", ""},
		{"mongodb://localhost:27017/clinic", "clinic"},
		{"mongodb://user:pw@db.example.com/records?retryWrites=true", "records"},
		{"mongodb+srv://user:pw@cluster0.example.net/legacy", "legacy"},
	}
	for _, tt := range tests {
		if got := databaseFromURI(tt.uri); got != tt.want {
			t.Errorf("databaseFromURI(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestPlainValue_ConvertsBSONTypes(t *testing.T) {
	oid := bson.NewObjectID()
	doc := bson.M{
		"_id":   oid,
		"cost":  250.0,
		"codes": bson.A{"D1110", bson.D{{Key: "tooth", Value: "14"}}},
	}

	out, ok := plainValue(doc).(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", plainValue(doc))
	}
	if out["_id"] != oid.Hex() {
		t.Errorf("_id = %v, want %s", out["_id"], oid.Hex())
	}
	codes, ok := out["codes"].([]any)
	if !ok || len(codes) != 2 {
		t.Fatalf("codes = %#v", out["codes"])
	}
	nested, ok := codes[1].(map[string]any)
	if !ok || nested["tooth"] != "14" {
		t.Errorf("nested = %#v", codes[1])
	}
}

func TestStorageReader_List(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()
	store.Put(ctx, "clinic", CollectionTreatments, "t1", []byte(`{"procedure":"Cleaning"}`))
	store.Put(ctx, "clinic", CollectionTreatments, "t2", []byte(`not json`))

	records, err := NewStorageReader(store).List(ctx, "clinic", CollectionTreatments)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected malformed record to be skipped, got %d records", len(records))
	}
	if records[0]["id"] != "t1" || records[0]["procedure"] != "Cleaning" {
		t.Errorf("record = %#v", records[0])
	}
}
