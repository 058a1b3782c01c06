package ticks

import "testing"

func TestPinCurrentThread_UnlocksCleanly(t *testing.T) {
	unlock := PinCurrentThread()
	if unlock == nil {
		t.Fatal("expected a non-nil unlock func")
	}
	unlock()
}
