// Package directory implements C6, the packed directory-entry layer. A
// directory's content is just a sequence of fixed-size dirents stored
// through the owning inode, read and written exactly like any other file's
// bytes (spec.md §4.5: "Directory content ... may span beyond the first
// direct block"). Grounded on dargueta-disko/drivers/unixv1/dirents.go for
// the raw-record split, and on original_source/directory.c for the
// lookup/link/delete control flow, corrected where the reference C has
// off-by-one bugs (directory_delete's read of "remaining_space" one entry
// too early, directory_readdir indexing blocks instead of bytes).
package directory

import (
	"bytes"
	"encoding/binary"
)

// NameSize is the maximum length of a path component, matching spec.md §3's
// "128-byte NUL-padded name".
const NameSize = 128

// rawDirent is the fixed-size, disk-resident form of one directory entry:
// a NUL-padded name plus the inode number it names, padded so DirentSize
// gives a tidy packing.
type rawDirent struct {
	Name [NameSize]byte
	Inum int32
	_    [12]byte
}

// DirentSize is the on-disk size of one directory entry (spec.md §3).
var DirentSize = binary.Size(rawDirent{})

func encodeDirent(name string, inum int32) []byte {
	var raw rawDirent
	copy(raw.Name[:], name)
	raw.Inum = inum

	buf := new(bytes.Buffer)
	buf.Grow(DirentSize)
	if err := binary.Write(buf, binary.LittleEndian, &raw); err != nil {
		panic("directory: failed to encode dirent: " + err.Error())
	}
	return buf.Bytes()
}

func decodeDirent(data []byte) (name string, inum int32) {
	var raw rawDirent
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &raw); err != nil {
		panic("directory: corrupt dirent record: " + err.Error())
	}
	return decodeName(raw.Name[:]), raw.Inum
}

func decodeName(padded []byte) string {
	end := bytes.IndexByte(padded, 0)
	if end < 0 {
		end = len(padded)
	}
	return string(padded[:end])
}
