package modbusd

import (
	"log/slog"

	"github.com/simonvetter/modbus"

	"github.com/danielkucera/siomon/internal/sio"
)

// Engine is the part of the sensor hub the Modbus surface needs.
type Engine interface {
	Snapshot() sio.Snapshot
	Layout() sio.Layout
	RequestSpeed(percent int) int
	RequestAutomatic()
	FanRequested() int
}

// Handler implements modbus.RequestHandler on top of an Engine.
type Handler struct {
	engine Engine
	log    *slog.Logger
}

func NewHandler(e Engine, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{engine: e, log: log}
}

func (h *Handler) HandleCoils(*modbus.CoilsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (h *Handler) HandleDiscreteInputs(*modbus.DiscreteInputsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (h *Handler) HandleInputRegisters(req *modbus.InputRegistersRequest) ([]uint16, error) {
	regs := EncodeInputRegs(h.engine.Snapshot(), h.engine.Layout())
	return window(regs, req.Addr, req.Quantity)
}

// HandleHoldingRegisters serves the fan target. Writes of 0..100 request
// a manual duty, FanAutomatic hands control back to firmware.
func (h *Handler) HandleHoldingRegisters(req *modbus.HoldingRegistersRequest) ([]uint16, error) {
	if req.IsWrite {
		if int(req.Addr)+len(req.Args) > HoldingRegCount {
			return nil, modbus.ErrIllegalDataAddress
		}
		for _, v := range req.Args {
			switch {
			case v == FanAutomatic:
				h.engine.RequestAutomatic()
				h.log.Info("fan set to automatic over modbus", "client", req.ClientAddr)
			case v <= 100:
				p := h.engine.RequestSpeed(int(v))
				h.log.Info("fan speed requested over modbus", "client", req.ClientAddr, "percent", p)
			default:
				return nil, modbus.ErrIllegalDataValue
			}
		}
	}

	regs := []uint16{percentReg(h.engine.FanRequested())}
	return window(regs, req.Addr, req.Quantity)
}

func window(regs []uint16, addr, quantity uint16) ([]uint16, error) {
	end := int(addr) + int(quantity)
	if quantity == 0 || end > len(regs) {
		return nil, modbus.ErrIllegalDataAddress
	}
	return append([]uint16(nil), regs[addr:end]...), nil
}
