// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !cgo && (amd64 || arm64) && (linux || darwin || freebsd || windows)

package plugin

import (
	"fmt"
	"unsafe"

	"github.com/go-webgpu/goffi/ffi"
	"github.com/go-webgpu/goffi/types"
)

// NativeLoader opens C ABI plugin libraries without cgo. The entry points
// are:
//
//	void        GetRequiredVersion(castor_version *out);
//	uint32_t    GetType(void);
//	const char *GetName(void);
//	int32_t     OnLoad(const castor_host *host);
//	int32_t     OnUnload(const castor_host *host);
//
// castor_version and castor_host are both three uint32 fields holding a
// major, minor and patch version. A non-zero OnLoad or OnUnload result is an
// error. Native plugins cannot register Go factories; they extend the engine
// through their own side effects.
type NativeLoader struct{}

// hostInfo is the C layout of castor_host.
type hostInfo struct {
	major, minor, patch uint32
}

func (NativeLoader) Open(path string) (Library, error) {
	h, err := ffi.LoadLibrary(path)
	if err != nil {
		return nil, err
	}
	return &nativeLibrary{
		path:   path,
		handle: h,
		host:   &hostInfo{APIVersion.Major, APIVersion.Minor, APIVersion.Patch},
	}, nil
}

type nativeLibrary struct {
	path   string
	handle unsafe.Pointer
	host   *hostInfo
}

func (l *nativeLibrary) Path() string { return l.path }

func (l *nativeLibrary) Lookup(symbol string) (any, error) {
	fn, err := ffi.GetSymbol(l.handle, symbol)
	if err != nil || fn == nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMissingSymbol, symbol, err)
	}
	switch symbol {
	case SymbolRequiredVersion:
		cif, err := prepare(types.VoidTypeDescriptor, types.PointerTypeDescriptor)
		if err != nil {
			return nil, err
		}
		return func() (Version, error) {
			var v hostInfo
			p := unsafe.Pointer(&v)
			if err := ffi.CallFunction(cif, fn, nil, []unsafe.Pointer{unsafe.Pointer(&p)}); err != nil {
				return Version{}, callError(symbol, err)
			}
			return Version{Major: v.major, Minor: v.minor, Patch: v.patch}, nil
		}, nil
	case SymbolType:
		cif, err := prepare(types.UInt32TypeDescriptor)
		if err != nil {
			return nil, err
		}
		return func() (Type, error) {
			var t uint32
			if err := ffi.CallFunction(cif, fn, unsafe.Pointer(&t), nil); err != nil {
				return 0, callError(symbol, err)
			}
			return Type(t), nil
		}, nil
	case SymbolName:
		cif, err := prepare(types.PointerTypeDescriptor)
		if err != nil {
			return nil, err
		}
		return func() (string, error) {
			var s unsafe.Pointer
			if err := ffi.CallFunction(cif, fn, unsafe.Pointer(&s), nil); err != nil {
				return "", callError(symbol, err)
			}
			return goString(s), nil
		}, nil
	case SymbolOnLoad, SymbolOnUnload:
		cif, err := prepare(types.SInt32TypeDescriptor, types.PointerTypeDescriptor)
		if err != nil {
			return nil, err
		}
		return func(Registrar) error {
			var rc int32
			p := unsafe.Pointer(l.host)
			if err := ffi.CallFunction(cif, fn, unsafe.Pointer(&rc), []unsafe.Pointer{unsafe.Pointer(&p)}); err != nil {
				return callError(symbol, err)
			}
			if rc != 0 {
				return fmt.Errorf("plugin: %s returned %d", symbol, rc)
			}
			return nil
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrMissingSymbol, symbol)
}

func (l *nativeLibrary) Close() error {
	if l.handle == nil {
		return nil
	}
	err := ffi.FreeLibrary(l.handle)
	l.handle = nil
	return err
}

func callError(symbol string, err error) error {
	return fmt.Errorf("plugin: call %s: %w", symbol, err)
}

func prepare(ret *types.TypeDescriptor, args ...*types.TypeDescriptor) (*types.CallInterface, error) {
	cif := &types.CallInterface{}
	if err := ffi.PrepareCallInterface(cif, types.DefaultCall, ret, args); err != nil {
		return nil, err
	}
	return cif, nil
}

// goString copies a NUL terminated C string.
func goString(p unsafe.Pointer) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(p, n)) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(p), n))
}

// DefaultLoader returns the loader for the running platform.
func DefaultLoader() Loader { return NativeLoader{} }
