// Package storage persists runs: binary save slots (narrative context plus
// the executor's frame snapshot), the JSON session-global blob, and a sqlite
// catalog of slot metadata for load menus.
package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"vivigo/internal/engine/runtime"
)

// slot file header: magic + format version
var magic = [4]byte{'V', 'I', 'V', 'I'}

const version uint16 = 1

// ErrSaveMismatch marks a save that no longer matches the loaded scripts.
var ErrSaveMismatch = errors.New("save file does not match the loaded scripts")

// FrameSnapshot is one call-stack entry in serializable form.
type FrameSnapshot struct {
	Label string
	PC    int
}

// savedChannel is an audio channel's state with explicit presence; a silent
// channel has Playing false.
type savedChannel struct {
	Playing bool
	Audio   runtime.Audio
}

// saveFile is the slot payload in gob-friendly form. The evaluator's save
// table is JSON-shaped by contract, so it rides along as an encoded blob.
type saveFile struct {
	Characters map[string]runtime.Character
	Audios     map[string]savedChannel
	History    []runtime.DialogueRecord
	Layers     runtime.Layers
	Vars       []byte
	Stack      []FrameSnapshot
}

// SaveSlot writes a slot atomically: encode to a temp file in the target
// directory, then rename over the destination.
func SaveSlot(path string, ctx *runtime.Ctx, stack []FrameSnapshot) error {
	vars, err := json.Marshal(ctx.Vars)
	if err != nil {
		return fmt.Errorf("encode save vars: %w", err)
	}
	save := saveFile{
		Characters: ctx.Characters,
		Audios:     make(map[string]savedChannel, len(ctx.Audios)),
		History:    ctx.History,
		Layers:     ctx.Layers,
		Vars:       vars,
		Stack:      stack,
	}
	for ch, a := range ctx.Audios {
		if a != nil {
			save.Audios[ch] = savedChannel{Playing: true, Audio: *a}
		} else {
			save.Audios[ch] = savedChannel{}
		}
	}

	var buf bytes.Buffer
	buf.Write(magic[:])
	if err := binary.Write(&buf, binary.LittleEndian, version); err != nil {
		return err
	}
	if err := gob.NewEncoder(&buf).Encode(save); err != nil {
		return fmt.Errorf("encode save: %w", err)
	}
	return writeAtomic(path, buf.Bytes())
}

// LoadSlot reads and decodes a slot, validating magic and version.
func LoadSlot(path string) (*runtime.Ctx, []FrameSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if len(data) < len(magic)+2 || !bytes.Equal(data[:len(magic)], magic[:]) {
		return nil, nil, fmt.Errorf("%s is not a save file", path)
	}
	v := binary.LittleEndian.Uint16(data[len(magic) : len(magic)+2])
	if v != version {
		return nil, nil, fmt.Errorf("save format version %d is not supported (want %d)", v, version)
	}

	var save saveFile
	if err := gob.NewDecoder(bytes.NewReader(data[len(magic)+2:])).Decode(&save); err != nil {
		return nil, nil, fmt.Errorf("decode save: %w", err)
	}

	ctx := runtime.NewCtx()
	if save.Characters != nil {
		ctx.Characters = save.Characters
	}
	for ch, s := range save.Audios {
		if s.Playing {
			a := s.Audio
			ctx.Audios[ch] = &a
		} else {
			ctx.Audios[ch] = nil
		}
	}
	ctx.History = save.History
	if save.Layers.Layer != nil {
		ctx.Layers = save.Layers
	}
	if len(save.Vars) > 0 {
		if err := json.Unmarshal(save.Vars, &ctx.Vars); err != nil {
			return nil, nil, fmt.Errorf("decode save vars: %w", err)
		}
	}
	return ctx, save.Stack, nil
}

// SaveGlobal writes the session-global table as a JSON blob, atomically.
func SaveGlobal(path string, globals map[string]any) error {
	data, err := json.MarshalIndent(globals, "", "  ")
	if err != nil {
		return fmt.Errorf("encode globals: %w", err)
	}
	return writeAtomic(path, data)
}

// LoadGlobal reads the session-global blob. A missing or empty file means
// new-game and yields a nil table.
func LoadGlobal(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var globals map[string]any
	if err := json.Unmarshal(data, &globals); err != nil {
		return nil, fmt.Errorf("decode globals: %w", err)
	}
	return globals, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// SlotPath names slot files inside a save directory.
func SlotPath(dir string, slot int) string {
	return filepath.Join(dir, fmt.Sprintf("slot_%d.sav", slot))
}
