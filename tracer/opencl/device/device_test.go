package device

import (
	"os"
	"path/filepath"
	"testing"
)

const testProgram = `
__kernel void square(__global int *in, __global int *out, const uint size) {
	int i = get_global_id(1) * get_global_size(0) + get_global_id(0);
	if (i < size) {
		out[i] = in[i] * in[i];
	}
}

__kernel void fill(__global int *out) {
	int i = get_global_id(1) * get_global_size(0) + get_global_id(0);
#ifdef __FILL_VALUE__
	out[i] = __FILL_VALUE__;
#else
	out[i] = -1;
#endif
}
`

// Select the first available opencl device and initialize it with the test
// program. Tests are skipped on hosts without opencl drivers.
func createTestDevice(t *testing.T) *Device {
	devList, err := SelectDevices(AllDevices, "", Requirements{})
	if err != nil {
		t.Skipf("opencl unavailable: %v", err)
	}
	if len(devList) == 0 {
		t.Skip("no opencl devices detected; check that openCL drivers are installed")
	}

	programFile := filepath.Join(t.TempDir(), "test.cl")
	if err = os.WriteFile(programFile, []byte(testProgram), 0644); err != nil {
		t.Fatal(err)
	}

	dev := devList[0]
	if err = dev.Init(programFile); err != nil {
		t.Fatalf("error initializing device '%s': %v", dev.Name, err)
	}
	t.Cleanup(dev.Close)

	return dev
}

func TestDeviceInit(t *testing.T) {
	dev := createTestDevice(t)

	if dev.MemorySize == 0 {
		t.Fatal("expected device memory size to be detected")
	}

	// Init is a no-op for initialized devices
	if err := dev.Init("missing.cl"); err != nil {
		t.Fatalf("expected repeated Init to succeed; got %v", err)
	}
}

func TestProgramCache(t *testing.T) {
	dev := createTestDevice(t)

	p1, err := dev.Program("-D__FILL_VALUE__=7")
	if err != nil {
		t.Fatal(err)
	}
	p2, err := dev.Program("-D__FILL_VALUE__=7")
	if err != nil {
		t.Fatal(err)
	}
	if p1 != p2 {
		t.Fatal("expected programs with identical build options to be cached")
	}

	if _, err = dev.Program(""); err != nil {
		t.Fatal(err)
	}
	if len(dev.programs) != 2 {
		t.Fatalf("expected 2 cached programs; got %d", len(dev.programs))
	}
}

func TestKernelErrors(t *testing.T) {
	dev := createTestDevice(t)

	_, err := dev.Kernel("foo")
	if err == nil {
		t.Fatal("expected to get an error while trying to load an unknown kernel")
	}
}

func TestUninitializedDevice(t *testing.T) {
	dev := &Device{Name: "test"}
	if _, err := dev.Program(""); err == nil {
		t.Fatal("expected an error when building programs on an uninitialized device")
	}
}
