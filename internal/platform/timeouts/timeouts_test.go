package timeouts

import "testing"

func TestRequestFitsInsideDial(t *testing.T) {
	if GRPCRequest > GRPCDial {
		t.Fatalf("GRPCRequest %s exceeds GRPCDial %s", GRPCRequest, GRPCDial)
	}
	if StreamShutdown < Shutdown {
		t.Fatalf("StreamShutdown %s is shorter than Shutdown %s", StreamShutdown, Shutdown)
	}
}
