package devices

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/smazurov/uvccap/pkg/linuxav/v4l2"
)

func fakeV4LTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{"by-id", "by-path"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	node := filepath.Join(root, "video0")
	if err := os.WriteFile(node, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	links := [][2]string{
		{"by-id/usb-Logitech_HD_Webcam_C920-video-index0", node},
		{"by-path/platform-fe801000.csi-video-index0", node},
		{"by-path/pci-0000:00:14.0-usb-0:1:1.0-video-index0", node},
		{"by-id/usb-Dangling_Camera-video-index0", filepath.Join(root, "missing")},
	}
	for _, link := range links {
		if err := os.Symlink(link[1], filepath.Join(root, link[0])); err != nil {
			t.Fatal(err)
		}
	}

	oldDir, oldLookup := v4lDir, lookupByID
	v4lDir = root
	lookupByID = func(id string) (string, error) {
		if id == "platform-synthetic-video-index2" {
			return "/dev/video2", nil
		}
		return "", ErrNotFound
	}
	t.Cleanup(func() {
		v4lDir, lookupByID = oldDir, oldLookup
	})
	return root
}

func TestResolve(t *testing.T) {
	root := fakeV4LTree(t)

	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr bool
	}{
		{"absolute path", "/dev/video0", "/dev/video0", false},
		{"by-id", "usb-Logitech_HD_Webcam_C920-video-index0", filepath.Join(root, "by-id", "usb-Logitech_HD_Webcam_C920-video-index0"), false},
		{"by-path", "platform-fe801000.csi-video-index0", filepath.Join(root, "by-path", "platform-fe801000.csi-video-index0"), false},
		{"by-path usb", "pci-0000:00:14.0-usb-0:1:1.0-video-index0", filepath.Join(root, "by-path", "pci-0000:00:14.0-usb-0:1:1.0-video-index0"), false},
		{"synthetic id", "platform-synthetic-video-index2", "/dev/video2", false},
		{"dangling symlink", "usb-Dangling_Camera-video-index0", "", true},
		{"unknown", "usb-nothing", "", true},
		{"relative path", "by-id/usb-Logitech_HD_Webcam_C920-video-index0", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.ref)
			if tt.wantErr {
				if !errors.Is(err, ErrNotFound) {
					t.Fatalf("Resolve(%q) error = %v, want ErrNotFound", tt.ref, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) failed: %v", tt.ref, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}
}

func TestInfoFlags(t *testing.T) {
	info := fromDeviceInfo(v4l2.DeviceInfo{
		DevicePath: "/dev/video0",
		DeviceName: "Cam",
		DeviceID:   "usb-cam",
		Caps:       v4l2.CapVideoCapture | v4l2.CapStreaming,
	})
	want := []string{"capture", "streaming"}
	if len(info.Flags) != len(want) {
		t.Fatalf("Flags = %v, want %v", info.Flags, want)
	}
	for i := range want {
		if info.Flags[i] != want[i] {
			t.Errorf("Flags[%d] = %q, want %q", i, info.Flags[i], want[i])
		}
	}
	if info.Path != "/dev/video0" || info.Name != "Cam" || info.ID != "usb-cam" {
		t.Errorf("unexpected info %+v", info)
	}
}
