//go:build windows

package envconf

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

// userEnvironment is HKCU\Environment.
type userEnvironment struct{}

func (userEnvironment) open(access uint32) (registry.Key, error) {
	return registry.OpenKey(registry.CURRENT_USER, "Environment", access)
}

func (u userEnvironment) Get(name string) (string, bool, bool, error) {
	k, err := u.open(registry.QUERY_VALUE)
	if err != nil {
		return "", false, false, err
	}
	defer k.Close()
	v, typ, err := k.GetStringValue(name)
	if errors.Is(err, registry.ErrNotExist) {
		return "", false, false, nil
	}
	if err != nil {
		return "", false, false, err
	}
	return v, typ == registry.EXPAND_SZ, true, nil
}

func (u userEnvironment) SetString(name, value string) error {
	k, err := u.open(registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer k.Close()
	return k.SetStringValue(name, value)
}

func (u userEnvironment) SetExpandString(name, value string) error {
	k, err := u.open(registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer k.Close()
	return k.SetExpandStringValue(name, value)
}

func (u userEnvironment) Delete(name string) error {
	k, err := u.open(registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer k.Close()
	if err := k.DeleteValue(name); err != nil && !errors.Is(err, registry.ErrNotExist) {
		return err
	}
	return nil
}

var sendMessageTimeout = windows.NewLazySystemDLL("user32.dll").NewProc("SendMessageTimeoutW")

// broadcastChange tells Explorer and friends to reload the environment.
func broadcastChange() {
	const (
		hwndBroadcast   = 0xffff
		wmSettingChange = 0x001A
		smtoAbortIfHung = 0x0002
	)
	env, err := windows.UTF16PtrFromString("Environment")
	if err != nil {
		return
	}
	var result uintptr
	_, _, _ = sendMessageTimeout.Call(hwndBroadcast, wmSettingChange, 0,
		uintptr(unsafe.Pointer(env)), smtoAbortIfHung, 5000, uintptr(unsafe.Pointer(&result)))
}
