package graph

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"time"

	"github.com/cwbaker/forge/internal/eventsink"
	"github.com/cwbaker/forge/internal/system"
	"github.com/cwbaker/forge/pkg/forgeerrors"
)

// Fixed little-endian binary encoding (spec §6 "Graph file"). The format
// is specified byte-for-byte, which is why this stays on encoding/binary
// rather than a general-purpose codec (see DESIGN.md).
const (
	magic          uint32 = 0x46524731 // "FRG1"
	formatVersion  uint32 = 1
	headerByteSize        = 8
)

// Save serializes the graph to path. Writes go to a temporary file first
// and are renamed into place, the same atomic-write pattern the teacher
// repo used for its own on-disk registry.
func (g *Graph) Save(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return &forgeerrors.IoError{Op: "create", Path: tmpPath, Err: err}
	}

	writer := bufio.NewWriter(file)
	if err := g.encode(writer); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return &forgeerrors.IoError{Op: "flush", Path: tmpPath, Err: err}
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return &forgeerrors.IoError{Op: "close", Path: tmpPath, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &forgeerrors.IoError{Op: "rename", Path: path, Err: err}
	}
	return nil
}

func (g *Graph) encode(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, magic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, formatVersion); err != nil {
		return err
	}

	targets := g.Targets()
	index := make(map[string]uint32, len(targets))
	for i, t := range targets {
		index[t.Path] = uint32(i)
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(targets))); err != nil {
		return err
	}
	for _, t := range targets {
		if err := writeString(w, t.Path); err != nil {
			return err
		}
		protoID := ""
		if t.Prototype != nil {
			protoID = t.Prototype.ID
		}
		if err := writeString(w, protoID); err != nil {
			return err
		}
		if err := writeTime(w, t.Timestamp); err != nil {
			return err
		}
		if err := writeTime(w, t.LastWriteTime); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(t.Filenames))); err != nil {
			return err
		}
		for _, filename := range t.Filenames {
			if err := writeString(w, filename); err != nil {
				return err
			}
		}
	}

	type edge struct{ from, to uint32 }
	var edges []edge
	for _, t := range targets {
		for _, dep := range t.explicit {
			edges = append(edges, edge{index[t.Path], index[dep.Path]})
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(edges))); err != nil {
		return err
	}
	for _, e := range edges {
		if err := binary.Write(w, binary.LittleEndian, e.from); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, e.to); err != nil {
			return err
		}
	}
	return nil
}

// Load reads a graph previously written by Save into a fresh Graph backed
// by sys/sink. On schema mismatch or any structural error the file is
// discarded and a fresh empty graph is returned — staleness is safe
// (spec §4.1 "fails closed").
func Load(path string, sys system.System, sink eventsink.Sink) *Graph {
	empty := New(sys, sink)

	file, err := os.Open(path)
	if err != nil {
		return empty
	}
	defer file.Close()

	loaded, err := decode(bufio.NewReader(file), empty)
	if err != nil {
		return New(sys, sink)
	}
	return loaded
}

func decode(r io.Reader, into *Graph) (*Graph, error) {
	var gotMagic, gotVersion uint32
	if err := binary.Read(r, binary.LittleEndian, &gotMagic); err != nil {
		return nil, &forgeerrors.GraphFormatError{Reason: "truncated header"}
	}
	if gotMagic != magic {
		return nil, &forgeerrors.GraphFormatError{Reason: "bad magic"}
	}
	if err := binary.Read(r, binary.LittleEndian, &gotVersion); err != nil {
		return nil, &forgeerrors.GraphFormatError{Reason: "truncated header"}
	}
	if gotVersion != formatVersion {
		return nil, &forgeerrors.GraphFormatError{Reason: "version mismatch"}
	}

	g := New(into.sys, into.sink)

	var targetCount uint32
	if err := binary.Read(r, binary.LittleEndian, &targetCount); err != nil {
		return nil, &forgeerrors.GraphFormatError{Reason: "truncated target count"}
	}

	ordered := make([]*Target, 0, targetCount)
	for i := uint32(0); i < targetCount; i++ {
		path, err := readString(r)
		if err != nil {
			return nil, err
		}
		protoID, err := readString(r)
		if err != nil {
			return nil, err
		}
		var proto *TargetPrototype
		if protoID != "" {
			proto = g.FindOrCreatePrototype(protoID)
		}
		t, err := g.FindOrCreateTarget(path, proto)
		if err != nil {
			return nil, &forgeerrors.GraphFormatError{Reason: err.Error()}
		}
		if ts, err := readTime(r); err != nil {
			return nil, err
		} else {
			t.Timestamp = ts
		}
		if lwt, err := readTime(r); err != nil {
			return nil, err
		} else {
			t.LastWriteTime = lwt
		}
		var filenameCount uint32
		if err := binary.Read(r, binary.LittleEndian, &filenameCount); err != nil {
			return nil, &forgeerrors.GraphFormatError{Reason: "truncated filename count"}
		}
		for fi := uint32(0); fi < filenameCount; fi++ {
			filename, err := readString(r)
			if err != nil {
				return nil, err
			}
			t.SetFilename(int(fi), filename)
		}
		ordered = append(ordered, t)
	}

	var edgeCount uint32
	if err := binary.Read(r, binary.LittleEndian, &edgeCount); err != nil {
		return nil, &forgeerrors.GraphFormatError{Reason: "truncated edge count"}
	}
	for i := uint32(0); i < edgeCount; i++ {
		var from, to uint32
		if err := binary.Read(r, binary.LittleEndian, &from); err != nil {
			return nil, &forgeerrors.GraphFormatError{Reason: "truncated edge"}
		}
		if err := binary.Read(r, binary.LittleEndian, &to); err != nil {
			return nil, &forgeerrors.GraphFormatError{Reason: "truncated edge"}
		}
		if int(from) >= len(ordered) || int(to) >= len(ordered) {
			return nil, &forgeerrors.GraphFormatError{Reason: "edge index out of range"}
		}
		ordered[from].AddExplicitDependency(ordered[to])
	}

	return g, nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", &forgeerrors.GraphFormatError{Reason: "truncated string length"}
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", &forgeerrors.GraphFormatError{Reason: "truncated string"}
	}
	return string(buf), nil
}

func writeTime(w io.Writer, t time.Time) error {
	var nanos int64
	if !t.IsZero() {
		nanos = t.UnixNano()
	}
	return binary.Write(w, binary.LittleEndian, nanos)
}

func readTime(r io.Reader) (time.Time, error) {
	var nanos int64
	if err := binary.Read(r, binary.LittleEndian, &nanos); err != nil {
		return time.Time{}, &forgeerrors.GraphFormatError{Reason: "truncated timestamp"}
	}
	if nanos == 0 {
		return time.Time{}, nil
	}
	return time.Unix(0, nanos).UTC(), nil
}
