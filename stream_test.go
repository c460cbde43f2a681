package tmcgo

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// command is one decoded element of an ESC/P2 stream.
type command struct {
	name   string
	params []byte

	// ESC i only
	color       byte
	compressed  bool
	bits        int
	bytesPerRow int
	rows        int
	raw         []byte
	data        []byte
}

func (c command) u32() uint32 {
	return binary.LittleEndian.Uint32(c.params)
}

func parseStream(t *testing.T, b []byte) []command {
	t.Helper()

	var out []command
	remote := false
	for i := 0; i < len(b); {
		rest := b[i:]
		switch {
		case bytes.HasPrefix(rest, cmdExitPacketMode):
			out = append(out, command{name: "EJL"})
			i += len(cmdExitPacketMode)
		case remote && rest[0] != esc:
			if len(rest) < 4 {
				t.Fatalf("offset %d: short remote command", i)
			}
			n := int(binary.LittleEndian.Uint16(rest[2:4]))
			if len(rest) < 4+n {
				t.Fatalf("offset %d: remote %q wants %d bytes", i, rest[:2], n)
			}
			out = append(out, command{name: string(rest[:2]), params: rest[4 : 4+n]})
			i += 4 + n
		case rest[0] == cr:
			out = append(out, command{name: "CR"})
			i++
		case rest[0] == ff:
			out = append(out, command{name: "FF"})
			i++
		case rest[0] == esc && len(rest) >= 2:
			switch rest[1] {
			case '@':
				out = append(out, command{name: "ESC @"})
				i += 2
			case 0x00:
				if !bytes.HasPrefix(rest, cmdExitRemote) {
					t.Fatalf("offset %d: bad exit remote % x", i, rest[:min(4, len(rest))])
				}
				out = append(out, command{name: "ESC 00"})
				remote = false
				i += len(cmdExitRemote)
			case 0x19:
				if len(rest) < 3 {
					t.Fatalf("offset %d: short ESC EM", i)
				}
				out = append(out, command{name: "ESC EM", params: rest[2:3]})
				i += 3
			case '(':
				if len(rest) < 5 {
					t.Fatalf("offset %d: short ESC (", i)
				}
				n := int(binary.LittleEndian.Uint16(rest[3:5]))
				if len(rest) < 5+n {
					t.Fatalf("offset %d: ESC ( %c wants %d bytes", i, rest[2], n)
				}
				out = append(out, command{name: "ESC (" + string(rest[2]), params: rest[5 : 5+n]})
				if rest[2] == 'R' {
					remote = true
				}
				i += 5 + n
			case 'i':
				if len(rest) < 9 {
					t.Fatalf("offset %d: short ESC i", i)
				}
				c := command{
					name:        "ESC i",
					color:       rest[2],
					compressed:  rest[3] != 0,
					bits:        int(rest[4]),
					bytesPerRow: int(binary.LittleEndian.Uint16(rest[5:7])),
					rows:        int(binary.LittleEndian.Uint16(rest[7:9])),
				}
				payload := rest[9:]
				want := c.bytesPerRow * c.rows
				used := want
				if c.compressed {
					data, n, err := UnpackBits(payload, want)
					if err != nil {
						t.Fatalf("offset %d: %v", i, err)
					}
					c.data, used = data, n
				} else {
					if len(payload) < want {
						t.Fatalf("offset %d: ESC i wants %d bytes, have %d", i, want, len(payload))
					}
					c.data = payload[:want]
				}
				c.raw = payload[:used]
				out = append(out, c)
				i += 9 + used
			default:
				t.Fatalf("offset %d: unknown ESC %#x", i, rest[1])
			}
		default:
			t.Fatalf("offset %d: unexpected byte %#x", i, rest[0])
		}
	}
	return out
}

func names(cmds []command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.name
	}
	return out
}

func filter(cmds []command, name string) []command {
	var out []command
	for _, c := range cmds {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

// after returns the commands following the last one named name.
func after(cmds []command, name string) []command {
	for i := len(cmds) - 1; i >= 0; i-- {
		if cmds[i].name == name {
			return cmds[i+1:]
		}
	}
	return nil
}
