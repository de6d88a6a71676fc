package proto

import "testing"

func TestErrorPayloadRoundTrip(t *testing.T) {
	p := ErrorPayload(ErrNoMemory, MsgMemResize, []byte("arena full"))
	code, ref, detail, ok := DecodeErrorPayload(p)
	if !ok {
		t.Fatalf("decode failed")
	}
	if code != ErrNoMemory || ref != MsgMemResize {
		t.Fatalf("decoded (%v,%v), want (%v,%v)", code, ref, ErrNoMemory, MsgMemResize)
	}
	if string(detail) != "arena full" {
		t.Fatalf("detail=%q, want %q", detail, "arena full")
	}
}

func TestErrorPayloadTruncatedInput(t *testing.T) {
	if _, _, _, ok := DecodeErrorPayload([]byte{1, 0}); ok {
		t.Fatalf("decoded a truncated payload")
	}
}

func TestTaskInfoClampsName(t *testing.T) {
	buf, ok := AppendTaskInfo(nil, 64, TaskInfo{
		ID: 4, State: TaskWaiting, UID: 2, Name: "a-name-far-longer-than-fits",
	})
	if !ok {
		t.Fatalf("append failed")
	}
	infos, ok := DecodeTaskInfos(buf)
	if !ok || len(infos) != 1 {
		t.Fatalf("decode = (%d,%v), want 1 entry", len(infos), ok)
	}
	if got := infos[0].Name; len(got) != taskInfoNameMax {
		t.Fatalf("name %q not clamped to %d bytes", got, taskInfoNameMax)
	}
	if infos[0].State != TaskWaiting || infos[0].ID != 4 {
		t.Fatalf("entry=%+v lost fields", infos[0])
	}
}

func TestTaskInfoStopsAtBudget(t *testing.T) {
	var buf []byte
	n := 0
	for {
		next, ok := AppendTaskInfo(buf, 64, TaskInfo{ID: uint8(n), Name: "task"})
		if !ok {
			break
		}
		buf = next
		n++
	}
	if n == 0 || len(buf) > 64 {
		t.Fatalf("appended %d entries into %d bytes, want >0 within 64", n, len(buf))
	}
	if _, ok := DecodeTaskInfos(buf); !ok {
		t.Fatalf("full snapshot failed to decode")
	}
}

func TestDecodeTaskInfosRejectsGarbage(t *testing.T) {
	if _, ok := DecodeTaskInfos([]byte{1, 2, 3}); ok {
		t.Fatalf("decoded a short entry header")
	}
	if _, ok := DecodeTaskInfos([]byte{1, 2, 3, 200, 'x'}); ok {
		t.Fatalf("decoded an entry with a lying name length")
	}
}

func TestKindStringsAreNamed(t *testing.T) {
	for kd := MsgLogLine; kd < KindMax; kd++ {
		if s := kd.String(); s == "" || s == "unknown" {
			t.Fatalf("kind %d has no name", kd)
		}
	}
}
