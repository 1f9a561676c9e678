package debugagent

import (
	"fmt"
	"strconv"

	"github.com/byuccl/coast/internal/transport"
)

// Client is the orchestrator-side half of the agent protocol: it owns
// the debugger socket (per spec.md §5, exclusively, modulo the
// reset_socket rebinding during restarts) and issues the command
// vocabulary from spec.md §4.C.
type Client struct {
	conn *transport.Conn
}

// NewClient wraps an already-dialed connection to the agent.
func NewClient(conn *transport.Conn) *Client {
	return &Client{conn: conn}
}

// Rebind swaps in a freshly dialed connection after a restart, per the
// reset_socket sentinel in spec.md §5.
func (c *Client) Rebind(conn *transport.Conn) { c.conn = conn }

func (c *Client) command(cmd string, args ...string) error {
	if err := c.conn.SendString(cmd); err != nil {
		return err
	}
	for _, a := range args {
		if err := c.conn.SendString(a); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) commandReply(cmd string, args ...string) (string, error) {
	if err := c.command(cmd, args...); err != nil {
		return "", err
	}
	return c.conn.RecvString()
}

// ConfigureGDB performs the initial hookup and waits for its ack.
func (c *Client) ConfigureGDB() error {
	_, err := c.commandReply("configure_gdb")
	return err
}

// SilentConfigure is ConfigureGDB without the acknowledgement print.
func (c *Client) SilentConfigure() error {
	return c.command("silent_configure")
}

// SetTimeout arms the watchdog period.
func (c *Client) SetTimeout(seconds float64) error {
	_, err := c.commandReply("set_timeout", strconv.FormatFloat(seconds, 'f', -1, 64))
	return err
}

// SetupHandlers installs the full stop handler that reports
// breakpoint/stop/exited events asynchronously.
func (c *Client) SetupHandlers() error {
	_, err := c.commandReply("setup_handlers")
	return err
}

// Continue issues a bare continue; per spec.md §4.C there is no
// synchronous response — the caller observes the next async event via
// RecvEvent.
func (c *Client) Continue() error {
	return c.command("continue")
}

// Interrupt halts the target and waits for the stop acknowledgement.
func (c *Client) Interrupt() (string, error) {
	return c.commandReply("interrupt")
}

// Reload re-loads the kernel and resets PC.
func (c *Client) Reload() error {
	return c.command("reload")
}

// ReadRegister implements inject.DebugLink.
func (c *Client) ReadRegister(name string) (uint32, error) {
	reply, err := c.commandReply("read_reg", name)
	if err != nil {
		return 0, err
	}
	return parseHexReply(reply)
}

// WriteRegister implements inject.DebugLink.
func (c *Client) WriteRegister(name string, value uint32) error {
	return c.command("write_reg", name, fmt.Sprintf("0x%x", value))
}

// ReadWord implements inject.DebugLink.
func (c *Client) ReadWord(addr uint32) (uint32, error) {
	reply, err := c.commandReply("read_mem", fmt.Sprintf("0x%x", addr))
	if err != nil {
		return 0, err
	}
	return parseHexReply(reply)
}

// WriteWord implements inject.DebugLink.
func (c *Client) WriteWord(addr uint32, value uint32) error {
	return c.command("write_mem", fmt.Sprintf("0x%x", addr), fmt.Sprintf("0x%x", value))
}

// SymbolAt implements inject.DebugLink, looking up the nearest symbol
// name at a memory address; ("", false) if unresolved ("None").
func (c *Client) SymbolAt(addr uint32) (string, bool) {
	reply, err := c.commandReply("mem_name", fmt.Sprintf("0x%x", addr))
	if err != nil || reply == "None" {
		return "", false
	}
	return reply, true
}

// RegisterSymbol looks up the nearest symbol at a register's value.
func (c *Client) RegisterSymbol(name string) (string, bool) {
	reply, err := c.commandReply("reg_name", name)
	if err != nil || reply == "None" {
		return "", false
	}
	return reply, true
}

// SymbolAddress resolves a symbol name to its address.
func (c *Client) SymbolAddress(name string) (uint32, bool) {
	reply, err := c.commandReply("sym_addr", name)
	if err != nil || reply == "None" {
		return 0, false
	}
	v, err := strconv.ParseUint(reply, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

// ReadGlobalTimer reads the board's global cycle/timer counter.
func (c *Client) ReadGlobalTimer() (uint64, error) {
	reply, err := c.commandReply("read_global_timer")
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(reply, 10, 64)
}

// GetVar reads a guest program variable's value (e.g. nErrors).
func (c *Client) GetVar(name string) (string, error) {
	return c.commandReply("get_var", name)
}

// Exec runs a raw debugger command, used by the orchestrator CLI's
// -x/--debug-commands file (spec.md §6).
func (c *Client) Exec(raw string) (string, error) {
	return c.commandReply("exec", raw)
}

// Quit requests a normal shutdown and waits for the acknowledgement.
func (c *Client) Quit() error {
	_, err := c.commandReply("quit")
	return err
}

// Kill requests an abnormal shutdown.
func (c *Client) Kill() error {
	_, err := c.commandReply("kill")
	return err
}

// Disconnect bounces the debug link without tearing down the agent
// process.
func (c *Client) Disconnect() error {
	return c.command("disconnect")
}

// Reconnect re-establishes the debug link after Disconnect.
func (c *Client) Reconnect() error {
	return c.command("reconnect")
}

// RecvEvent reads one asynchronous event message pushed by the agent.
// "hit breakpoint" is immediately followed by the breakpoint location
// string, which the caller reads with a second RecvEvent call.
func (c *Client) RecvEvent() (string, error) {
	return c.conn.RecvString()
}

func parseHexReply(s string) (uint32, error) {
	var v uint32
	_, err := fmt.Sscanf(s, "0x%x", &v)
	return v, err
}
