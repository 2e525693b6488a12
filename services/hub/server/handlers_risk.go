package server

import (
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Tilt-github/aave-v4-sub006/native/events"
	"github.com/Tilt-github/aave-v4-sub006/native/hub"
	"github.com/Tilt-github/aave-v4-sub006/native/spoke"
	"github.com/Tilt-github/aave-v4-sub006/observability"
	"github.com/Tilt-github/aave-v4-sub006/observability/logging"
)

type listReserveRequest struct {
	Asset                  uint16 `json:"asset"`
	RiskTierBps            uint64 `json:"risk_tier_bps"`
	Borrowable             bool   `json:"borrowable"`
	CollateralFactorBps    uint64 `json:"collateral_factor_bps"`
	MaxLiquidationBonusBps uint64 `json:"max_liquidation_bonus_bps"`
	LiquidationFeeBps      uint64 `json:"liquidation_fee_bps"`
}

type reserveConfigRequest struct {
	CollateralFactorBps    uint64 `json:"collateral_factor_bps"`
	MaxLiquidationBonusBps uint64 `json:"max_liquidation_bonus_bps"`
	LiquidationFeeBps      uint64 `json:"liquidation_fee_bps"`
}

type reserveFlagsRequest struct {
	Paused     bool `json:"paused"`
	Frozen     bool `json:"frozen"`
	Borrowable bool `json:"borrowable"`
}

type priceRequest struct {
	Price string `json:"price"`
}

type amountRequest struct {
	Reserve      uint16 `json:"reserve"`
	Amount       string `json:"amount"`
	AsCollateral bool   `json:"as_collateral,omitempty"`
}

type collateralRequest struct {
	Reserve uint16 `json:"reserve"`
	On      bool   `json:"on"`
}

type liquidateRequest struct {
	Liquidator string `json:"liquidator"`
	User       string `json:"user"`
	Collateral uint16 `json:"collateral"`
	Debt       uint16 `json:"debt"`
	Amount     string `json:"amount"`
}

type positionResponse struct {
	AddedShares string `json:"added_shares"`
	DrawnShares string `json:"drawn_shares"`
	GhostShares string `json:"ghost_shares"`
	Realized    string `json:"realized"`
	ConfigKey   uint16 `json:"config_key"`
}

func (s *Server) ListReserve(w http.ResponseWriter, r *http.Request) {
	var req listReserveRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	id, err := s.risk.ListReserve(hub.AssetID(req.Asset), req.RiskTierBps, req.Borrowable, spoke.DynamicReserveConfig{
		CollateralFactorBps:    req.CollateralFactorBps,
		MaxLiquidationBonusBps: req.MaxLiquidationBonusBps,
		LiquidationFeeBps:      req.LiquidationFeeBps,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]uint16{"reserve": uint16(id)})
}

func (s *Server) SetDynamicConfig(w http.ResponseWriter, r *http.Request) {
	id, err := reserveParam(r, "reserve")
	if err != nil {
		respondError(w, err)
		return
	}
	var req reserveConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := s.risk.SetDynamicConfig(id, spoke.DynamicReserveConfig{
		CollateralFactorBps:    req.CollateralFactorBps,
		MaxLiquidationBonusBps: req.MaxLiquidationBonusBps,
		LiquidationFeeBps:      req.LiquidationFeeBps,
	}); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) SetReserveFlags(w http.ResponseWriter, r *http.Request) {
	id, err := reserveParam(r, "reserve")
	if err != nil {
		respondError(w, err)
		return
	}
	var req reserveFlagsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := s.risk.SetReserveFlags(id, req.Paused, req.Frozen, req.Borrowable); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) SetPrice(w http.ResponseWriter, r *http.Request) {
	id, err := reserveParam(r, "reserve")
	if err != nil {
		respondError(w, err)
		return
	}
	var req priceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	price, err := parseAmount(req.Price)
	if err != nil {
		respondError(w, err)
		return
	}
	s.prices.SetPrice(id, price)
	respondJSON(w, http.StatusOK, map[string]string{"status": "posted"})
}

func (s *Server) Supply(w http.ResponseWriter, r *http.Request) {
	s.userOperation(w, r, "supply", func(user uuid.UUID, req amountRequest, amount *big.Int) (*big.Int, error) {
		return s.risk.Supply(user, spoke.ReserveID(req.Reserve), amount, req.AsCollateral)
	})
}

func (s *Server) Withdraw(w http.ResponseWriter, r *http.Request) {
	s.userOperation(w, r, "withdraw", func(user uuid.UUID, req amountRequest, amount *big.Int) (*big.Int, error) {
		return s.risk.Withdraw(user, spoke.ReserveID(req.Reserve), amount)
	})
}

func (s *Server) Borrow(w http.ResponseWriter, r *http.Request) {
	s.userOperation(w, r, "borrow", func(user uuid.UUID, req amountRequest, amount *big.Int) (*big.Int, error) {
		return s.risk.Borrow(user, spoke.ReserveID(req.Reserve), amount)
	})
}

func (s *Server) Repay(w http.ResponseWriter, r *http.Request) {
	s.userOperation(w, r, "repay", func(user uuid.UUID, req amountRequest, amount *big.Int) (*big.Int, error) {
		return s.risk.Repay(user, spoke.ReserveID(req.Reserve), amount)
	})
}

// userOperation factors the shared decode, execute, observe flow of the
// position-mutating endpoints.
func (s *Server) userOperation(w http.ResponseWriter, r *http.Request, op string, run func(uuid.UUID, amountRequest, *big.Int) (*big.Int, error)) {
	user, err := uuid.Parse(chi.URLParam(r, "user"))
	if err != nil {
		respondError(w, err)
		return
	}
	var req amountRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondError(w, err)
		return
	}
	start := time.Now()
	result, err := run(user, req, amount)
	observability.Ledger().ObserveOperation(op, time.Since(start), err)
	if err != nil {
		respondError(w, err)
		return
	}
	s.logger.Info("position mutated",
		"operation", op,
		"reserve", strconv.FormatUint(uint64(req.Reserve), 10),
		logging.MaskField("user", user.String()))
	respondJSON(w, http.StatusOK, map[string]string{"shares": result.String()})
}

func (s *Server) SetCollateral(w http.ResponseWriter, r *http.Request) {
	user, err := uuid.Parse(chi.URLParam(r, "user"))
	if err != nil {
		respondError(w, err)
		return
	}
	var req collateralRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := s.risk.SetUsingAsCollateral(user, spoke.ReserveID(req.Reserve), req.On); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	user, err := uuid.Parse(chi.URLParam(r, "user"))
	if err != nil {
		respondError(w, err)
		return
	}
	hf, err := s.risk.HealthFactor(user)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"health_factor": hf.String()})
}

func (s *Server) Position(w http.ResponseWriter, r *http.Request) {
	user, err := uuid.Parse(chi.URLParam(r, "user"))
	if err != nil {
		respondError(w, err)
		return
	}
	id, err := reserveParam(r, "reserve")
	if err != nil {
		respondError(w, err)
		return
	}
	pos, err := s.risk.GetPosition(user, id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, positionResponse{
		AddedShares: pos.AddedShares.String(),
		DrawnShares: pos.DrawnShares.String(),
		GhostShares: pos.Premium.GhostShares.String(),
		Realized:    pos.Premium.Realized.String(),
		ConfigKey:   pos.ConfigKey,
	})
}

func (s *Server) Liquidate(w http.ResponseWriter, r *http.Request) {
	var req liquidateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	liquidator, err := uuid.Parse(req.Liquidator)
	if err != nil {
		respondError(w, err)
		return
	}
	user, err := uuid.Parse(req.User)
	if err != nil {
		respondError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondError(w, err)
		return
	}
	start := time.Now()
	covered, err := s.risk.Liquidate(liquidator, user, spoke.ReserveID(req.Collateral), spoke.ReserveID(req.Debt), amount)
	observability.Ledger().ObserveOperation("liquidate", time.Since(start), err)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"covered": covered.String()})
}

// Events returns the buffered change feed, optionally filtered by type.
func (s *Server) Events(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		respondJSON(w, http.StatusOK, []events.Event{})
		return
	}
	filter := r.URL.Query().Get("type")
	feed := s.feed.Snapshot()
	out := make([]events.Event, 0, len(feed))
	for _, evt := range feed {
		if filter == "" || evt.Type == filter {
			out = append(out, evt)
		}
	}
	respondJSON(w, http.StatusOK, out)
}

func reserveParam(r *http.Request, name string) (spoke.ReserveID, error) {
	raw, err := strconv.ParseUint(chi.URLParam(r, name), 10, 16)
	if err != nil {
		return 0, err
	}
	return spoke.ReserveID(raw), nil
}
