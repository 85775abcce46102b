// factoryctl talks to a running factoryd as a mirror peer, or checks a
// template file offline.
//
// Usage:
//
//	go run ./cmd/factoryctl <command> [-addr host:port] [flags]
//
// Commands: stats, slot, id, new, delete, templates
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/l1jgo/gamefactory/internal/core/tag"
	"github.com/l1jgo/gamefactory/internal/data"
	gonet "github.com/l1jgo/gamefactory/internal/net"
	"github.com/l1jgo/gamefactory/internal/net/packet"
	"golang.org/x/text/encoding"
)

type options struct {
	addr    string
	charset encoding.Encoding
	slot    uint
	id      uint64
	kind    string
	base    uint
	name    string
	changed bool
	file    string
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		printUsage()
		return
	}

	var o options
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	fs.StringVar(&o.addr, "addr", "127.0.0.1:7010", "factoryd address")
	charset := fs.String("charset", "", "wire charset (default windows-1252)")
	fs.UintVar(&o.slot, "slot", 0, "slot id")
	fs.Uint64Var(&o.id, "id", 0, "identity")
	fs.StringVar(&o.kind, "kind", "Object", "reference kind for new")
	fs.UintVar(&o.base, "base", 0, "base template id for new")
	fs.StringVar(&o.name, "name", "", "name for new")
	fs.BoolVar(&o.changed, "changed", true, "forward new/delete to other peers")
	fs.StringVar(&o.file, "file", "data/templates.yaml", "template file for templates")
	_ = fs.Parse(os.Args[2:])

	enc, err := packet.Charset(*charset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	o.charset = enc

	commands := map[string]func(options) error{
		"stats":     cmdStats,
		"slot":      cmdLookupSlot,
		"id":        cmdLookupID,
		"new":       cmdNew,
		"delete":    cmdDelete,
		"templates": cmdTemplates,
	}
	fn, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err := fn(o); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR [%s]: %v\n", cmd, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: factoryctl <command> [-addr host:port] [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  stats                          registry counters")
	fmt.Println("  slot -slot N                   identity holding a slot")
	fmt.Println("  id -id N                       slot held by an identity")
	fmt.Println("  new -kind K -base B -name S    announce a reference")
	fmt.Println("  delete -id N                   retire a reference")
	fmt.Println("  templates -file PATH           validate a template file")
}

// peer is a connected, greeted mirror session.
type peer struct {
	conn net.Conn
	enc  encoding.Encoding
}

func dial(o options) (*peer, error) {
	conn, err := net.DialTimeout("tcp", o.addr, 5*time.Second)
	if err != nil {
		return nil, err
	}
	p := &peer{conn: conn, enc: o.charset}
	w := packet.NewWriterWithOpcode(packet.C_OPCODE_HELLO, p.enc)
	w.WriteS("factoryctl")
	if _, err := p.roundTrip(w, packet.S_OPCODE_HELLO); err != nil {
		conn.Close()
		return nil, fmt.Errorf("hello: %w", err)
	}
	return p, nil
}

// roundTrip sends w and waits for a reply with opcode want, skipping
// forwarded announcements.
func (p *peer) roundTrip(w *packet.Writer, want byte) (*packet.Reader, error) {
	p.conn.SetDeadline(time.Now().Add(5 * time.Second))
	if err := gonet.WriteFrame(p.conn, w.Bytes()); err != nil {
		return nil, err
	}
	for {
		payload, err := gonet.ReadFrame(p.conn)
		if err != nil {
			return nil, err
		}
		r := packet.NewReader(payload, p.enc)
		if r.Opcode() == want {
			return r, nil
		}
	}
}

func withPeer(o options, fn func(*peer) error) error {
	p, err := dial(o)
	if err != nil {
		return err
	}
	defer p.conn.Close()
	return fn(p)
}

func cmdStats(o options) error {
	return withPeer(o, func(p *peer) error {
		r, err := p.roundTrip(packet.NewWriterWithOpcode(packet.C_OPCODE_STATS, p.enc), packet.S_OPCODE_STATS)
		if err != nil {
			return err
		}
		fmt.Printf("live=%d retired=%d pending=%d slots=%d next=%016x\n",
			r.ReadD(), r.ReadD(), r.ReadD(), r.ReadD(), r.ReadQ())
		return nil
	})
}

func cmdLookupSlot(o options) error {
	return withPeer(o, func(p *peer) error {
		w := packet.NewWriterWithOpcode(packet.C_OPCODE_LOOKUP_SLOT, p.enc)
		w.WriteD(uint32(o.slot))
		r, err := p.roundTrip(w, packet.S_OPCODE_LOOKUP_SLOT)
		if err != nil {
			return err
		}
		slot, id := r.ReadD(), r.ReadQ()
		fmt.Printf("slot %08x -> id %016x\n", slot, id)
		return nil
	})
}

func cmdLookupID(o options) error {
	return withPeer(o, func(p *peer) error {
		w := packet.NewWriterWithOpcode(packet.C_OPCODE_LOOKUP_ID, p.enc)
		w.WriteQ(o.id)
		r, err := p.roundTrip(w, packet.S_OPCODE_LOOKUP_ID)
		if err != nil {
			return err
		}
		id, slot := r.ReadQ(), r.ReadD()
		fmt.Printf("id %016x -> slot %08x\n", id, slot)
		return nil
	})
}

func cmdNew(o options) error {
	kind, err := tag.Parse(o.kind)
	if err != nil {
		return err
	}
	return withPeer(o, func(p *peer) error {
		w := packet.NewWriterWithOpcode(packet.C_OPCODE_NEW, p.enc)
		w.WriteD(uint32(kind))
		w.WriteQ(o.id)
		w.WriteD(uint32(o.slot))
		w.WriteD(uint32(o.base))
		w.WriteC(boolByte(o.changed))
		w.WriteS(o.name)
		r, err := p.roundTrip(w, packet.S_OPCODE_NEW_ACK)
		if err != nil {
			return err
		}
		id, slot, status := r.ReadQ(), r.ReadD(), r.ReadC()
		fmt.Printf("id %016x slot %08x status %s\n", id, slot, statusName(status))
		return nil
	})
}

func cmdDelete(o options) error {
	return withPeer(o, func(p *peer) error {
		w := packet.NewWriterWithOpcode(packet.C_OPCODE_DELETE, p.enc)
		w.WriteQ(o.id)
		r, err := p.roundTrip(w, packet.S_OPCODE_DELETE_ACK)
		if err != nil {
			return err
		}
		id, status := r.ReadQ(), r.ReadC()
		fmt.Printf("id %016x status %s\n", id, statusName(status))
		return nil
	})
}

func cmdTemplates(o options) error {
	tbl, err := data.LoadTemplateTable(o.file)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d templates OK\n", o.file, tbl.Count())
	return nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func statusName(s byte) string {
	switch s {
	case packet.StatusOK:
		return "ok"
	case packet.StatusNotFound:
		return "not found"
	case packet.StatusTypeMismatch:
		return "type mismatch"
	case packet.StatusDuplicate:
		return "duplicate"
	case packet.StatusPrecondition:
		return "precondition"
	case packet.StatusClosed:
		return "closed"
	case packet.StatusMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("error(%d)", s)
	}
}
