package protocol

import (
	"testing"

	"github.com/google/uuid"
	"github.com/pixil98/go-revival/internal/world"
	"github.com/pixil98/go-testutil"
)

func TestEncode_Codecs(t *testing.T) {
	tests := map[string]struct {
		codec string
	}{
		"json":    {codec: "json"},
		"msgpack": {codec: "msgpack"},
		"default": {codec: ""},
	}

	display := uuid.New()
	msg := EntityAppear{
		Handle:    2147473647,
		DisplayID: display,
		Kind:      KindHumanoid,
		Location:  world.Location{World: "W", X: 10.5, Y: 64, Z: -3.25, Yaw: 90, Pitch: 12.5},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			c, err := NewCodec(tt.codec)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			data, err := Encode(c, msg)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}

			typ, err := PeekType(c, data)
			if err != nil {
				t.Fatalf("peek: %v", err)
			}
			testutil.AssertEqual(t, "type", typ, TypeEntityAppear)

			f, err := Decode[EntityAppear](c, data)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			testutil.AssertEqual(t, "body", f.Body, msg)
			if f.ID.Time() == 0 {
				t.Error("frame id has no timestamp")
			}
		})
	}
}

func TestEncode_FrameIDsIncrease(t *testing.T) {
	c := JSONCodec{}
	var prev string
	for i := range 50 {
		data, err := Encode(c, Chat{Text: "hi"})
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		f, err := Decode[Chat](c, data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		id := f.ID.String()
		if i > 0 && id <= prev {
			t.Fatalf("frame id %s does not sort after %s", id, prev)
		}
		prev = id
	}
}

func TestNewCodec_Unknown(t *testing.T) {
	_, err := NewCodec("xml")
	testutil.AssertErrorContains(t, err, `unknown codec "xml"`)
}

func TestEvent_Decode(t *testing.T) {
	session := uuid.New()

	e, err := NewEvent(EventInteract, session, Interact{Handle: 42})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body Interact
	if err := e.Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	testutil.AssertEqual(t, "handle", body.Handle, int32(42))
	testutil.AssertEqual(t, "session", e.Session, session)

	empty := &Event{Type: EventDeath}
	testutil.AssertErrorContains(t, empty.Decode(&Death{}), "death event has no body")

	bad := &Event{Type: EventDeath, Body: []byte(`{"location":5}`)}
	testutil.AssertErrorContains(t, bad.Decode(&Death{}), "decoding death body")
}

func TestSessionSubject(t *testing.T) {
	id := uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")
	testutil.AssertEqual(t, "subject", SessionSubject(id), "session.0f8fad5b-d9cb-469f-a165-70867728950e")
}
