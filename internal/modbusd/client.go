package modbusd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/simonvetter/modbus"
)

// Client reads a remote siomon daemon over Modbus TCP.
type Client struct {
	mc        *modbus.ModbusClient
	blockSize uint16
	log       *slog.Logger
}

// Dial connects to url (tcp://host:port) as unitID.
func Dial(url string, unitID uint8, timeout time.Duration) (*Client, error) {
	mc, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     url,
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	if err := mc.SetUnitId(unitID); err != nil {
		return nil, fmt.Errorf("set unit id: %w", err)
	}
	if err := mc.Open(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}
	return &Client{mc: mc, blockSize: 50, log: slog.Default().With("component", "modbus-client")}, nil
}

func (c *Client) Close() error { return c.mc.Close() }

// ReadInputs reads and decodes the whole input register block.
func (c *Client) ReadInputs() (InputRegs, error) {
	m, err := c.collect(modbus.INPUT_REGISTER, 0, InputRegCount-1)
	if err != nil {
		return InputRegs{}, err
	}
	return DecodeInputMap(m), nil
}

// SetFan requests a manual duty in percent.
func (c *Client) SetFan(percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("fan percent %d out of range 0..100", percent)
	}
	return c.mc.WriteRegister(HoldingFanPercent, uint16(percent))
}

// SetAutomatic hands the remote fan back to firmware control.
func (c *Client) SetAutomatic() error {
	return c.mc.WriteRegister(HoldingFanPercent, FanAutomatic)
}

// collect reads start..end in blocks, reopening the connection once on a
// failed read.
func (c *Client) collect(regType modbus.RegType, start, end uint16) (map[uint16]uint16, error) {
	out := map[uint16]uint16{}
	total := end - start + 1

	for i := uint16(0); i < total; i += c.blockSize {
		batchStart := start + i
		batchQuantity := min(c.blockSize, total-i)

		regs, err := c.mc.ReadRegisters(batchStart, batchQuantity, regType)
		if err != nil {
			c.log.Warn("read registers failed, reconnecting", "start", batchStart, "quantity", batchQuantity, "err", err)
			_ = c.mc.Close()
			time.Sleep(500 * time.Millisecond)
			if err := c.mc.Open(); err != nil {
				return nil, fmt.Errorf("reopen: %w", err)
			}
			if regs, err = c.mc.ReadRegisters(batchStart, batchQuantity, regType); err != nil {
				return nil, fmt.Errorf("read %d-%d: %w", batchStart, batchStart+batchQuantity-1, err)
			}
		}
		for idx, val := range regs {
			out[batchStart+uint16(idx)] = val
		}
	}
	return out, nil
}
