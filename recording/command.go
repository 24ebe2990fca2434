// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package recording

import "github.com/gogpu/castor/device"

// CommandType identifies the type of a command.
// Each command type corresponds to one device.Backend method.
type CommandType uint8

const (
	// Resource commands
	CmdCreate       CommandType = iota // Create a backend object
	CmdDestroy                         // Destroy a backend object
	CmdWriteBuffer                     // Write buffer contents
	CmdWriteTexture                    // Upload one texture mip level

	// Binding commands
	CmdBindState    // Bind a fixed-function state
	CmdBindProgram  // Bind a shader program
	CmdBindResource // Bind a resource to a slot

	// Pass commands
	CmdBeginPass // Begin a render pass
	CmdDraw      // Draw
	CmdEndPass   // End a render pass
	CmdPresent   // Finish the frame

	cmdCount
)

// commandTypeNames maps CommandType values to their string representation.
var commandTypeNames = [...]string{
	CmdCreate:       "Create",
	CmdDestroy:      "Destroy",
	CmdWriteBuffer:  "WriteBuffer",
	CmdWriteTexture: "WriteTexture",
	CmdBindState:    "BindState",
	CmdBindProgram:  "BindProgram",
	CmdBindResource: "BindResource",
	CmdBeginPass:    "BeginPass",
	CmdDraw:         "Draw",
	CmdEndPass:      "EndPass",
	CmdPresent:      "Present",
}

// String returns the string representation of a CommandType.
func (c CommandType) String() string {
	if int(c) < len(commandTypeNames) {
		return commandTypeNames[c]
	}
	return "Unknown"
}

// Command is one recorded backend call.
type Command interface {
	// Type returns the CommandType for this command.
	Type() CommandType

	// replay issues the call on b.
	replay(b device.Backend) error
}

// CreateCommand creates the backend object for Handle.
type CreateCommand struct {
	Handle     device.Handle
	Descriptor device.Descriptor
}

// Type implements Command.
func (CreateCommand) Type() CommandType { return CmdCreate }

func (c CreateCommand) replay(b device.Backend) error { return b.CreateResource(c.Handle, c.Descriptor) }

// DestroyCommand destroys the backend object of Handle.
type DestroyCommand struct {
	Handle device.Handle
}

// Type implements Command.
func (DestroyCommand) Type() CommandType { return CmdDestroy }

func (c DestroyCommand) replay(b device.Backend) error {
	b.DestroyResource(c.Handle)
	return nil
}

// WriteBufferCommand copies Data into a buffer.
type WriteBufferCommand struct {
	Handle device.Handle
	Offset uint64
	Data   []byte
}

// Type implements Command.
func (WriteBufferCommand) Type() CommandType { return CmdWriteBuffer }

func (c WriteBufferCommand) replay(b device.Backend) error {
	return b.WriteBuffer(c.Handle, c.Offset, c.Data)
}

// WriteTextureCommand uploads one mip level.
type WriteTextureCommand struct {
	Handle device.Handle
	Level  uint32
	Data   []byte
}

// Type implements Command.
func (WriteTextureCommand) Type() CommandType { return CmdWriteTexture }

func (c WriteTextureCommand) replay(b device.Backend) error {
	return b.WriteTexture(c.Handle, c.Level, c.Data)
}

// BindStateCommand makes State current.
type BindStateCommand struct {
	State device.State
}

// Type implements Command.
func (BindStateCommand) Type() CommandType { return CmdBindState }

func (c BindStateCommand) replay(b device.Backend) error { return b.BindState(c.State) }

// BindProgramCommand makes a program current.
type BindProgramCommand struct {
	Handle device.Handle
}

// Type implements Command.
func (BindProgramCommand) Type() CommandType { return CmdBindProgram }

func (c BindProgramCommand) replay(b device.Backend) error { return b.BindProgram(c.Handle) }

// BindResourceCommand attaches Handle to Slot. An invalid handle clears it.
type BindResourceCommand struct {
	Slot   device.Slot
	Handle device.Handle
}

// Type implements Command.
func (BindResourceCommand) Type() CommandType { return CmdBindResource }

func (c BindResourceCommand) replay(b device.Backend) error { return b.BindResource(c.Slot, c.Handle) }

// BeginPassCommand starts a render pass.
type BeginPassCommand struct {
	Pass device.PassDescriptor
}

// Type implements Command.
func (BeginPassCommand) Type() CommandType { return CmdBeginPass }

func (c BeginPassCommand) replay(b device.Backend) error {
	p := c.Pass
	return b.BeginPass(&p)
}

// DrawCommand submits a draw.
type DrawCommand struct {
	Call device.DrawCall
}

// Type implements Command.
func (DrawCommand) Type() CommandType { return CmdDraw }

func (c DrawCommand) replay(b device.Backend) error { return b.Draw(c.Call) }

// EndPassCommand finishes a render pass.
type EndPassCommand struct{}

// Type implements Command.
func (EndPassCommand) Type() CommandType { return CmdEndPass }

func (EndPassCommand) replay(b device.Backend) error { return b.EndPass() }

// PresentCommand finishes a frame.
type PresentCommand struct{}

// Type implements Command.
func (PresentCommand) Type() CommandType { return CmdPresent }

func (PresentCommand) replay(b device.Backend) error { return b.Present() }

// Compile-time interface checks.
var (
	_ Command = CreateCommand{}
	_ Command = DestroyCommand{}
	_ Command = WriteBufferCommand{}
	_ Command = WriteTextureCommand{}
	_ Command = BindStateCommand{}
	_ Command = BindProgramCommand{}
	_ Command = BindResourceCommand{}
	_ Command = BeginPassCommand{}
	_ Command = DrawCommand{}
	_ Command = EndPassCommand{}
	_ Command = PresentCommand{}
)
