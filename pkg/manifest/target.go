package manifest

import "runtime"

// HostTriple returns the target triple the running binary was built for.
func HostTriple() string {
	return Triple(runtime.GOOS, runtime.GOARCH)
}

// Triple maps a GOOS/GOARCH pair to the toolchain's target naming.
func Triple(goos, goarch string) string {
	arch := map[string]string{
		"amd64":   "x86_64",
		"386":     "i686",
		"arm64":   "aarch64",
		"arm":     "armv7",
		"riscv64": "riscv64gc",
		"loong64": "loongarch64",
	}[goarch]
	if arch == "" {
		arch = goarch
	}

	switch goos {
	case "linux":
		if goarch == "arm" {
			return arch + "-unknown-linux-gnueabihf"
		}
		return arch + "-unknown-linux-gnu"
	case "darwin":
		return arch + "-apple-darwin"
	case "windows":
		return arch + "-pc-windows-msvc"
	case "freebsd":
		return arch + "-unknown-freebsd"
	}
	return arch + "-unknown-" + goos
}
