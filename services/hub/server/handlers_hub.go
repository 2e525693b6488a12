package server

import (
	"errors"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Tilt-github/aave-v4-sub006/native/hub"
	"github.com/Tilt-github/aave-v4-sub006/observability"
)

var errBadAmount = errors.New("server: amount must be a positive decimal integer")

type listAssetRequest struct {
	Asset       uint16 `json:"asset"`
	Underlying  string `json:"underlying"`
	Decimals    uint8  `json:"decimals"`
	FeeRateBps  uint64 `json:"fee_rate_bps"`
	FeeReceiver string `json:"fee_receiver"`
	Controller  string `json:"controller"`
}

type registerSpokeRequest struct {
	Spoke   string  `json:"spoke"`
	AddCap  *uint64 `json:"add_cap"`
	DrawCap *uint64 `json:"draw_cap"`
}

type assetResponse struct {
	Liquidity   string `json:"liquidity"`
	AddedShares string `json:"added_shares"`
	DrawnShares string `json:"drawn_shares"`
	DrawnIndex  string `json:"drawn_index"`
	DrawnRate   string `json:"drawn_rate"`
	Deficit     string `json:"deficit"`
	Swept       string `json:"swept"`
	Decimals    uint8  `json:"decimals"`
	Active      bool   `json:"active"`
}

type subledgerResponse struct {
	AddedShares string `json:"added_shares"`
	AddedAssets string `json:"added_assets"`
	OwedDrawn   string `json:"owed_drawn"`
	OwedPremium string `json:"owed_premium"`
	Deficit     string `json:"deficit"`
}

func (s *Server) ListAsset(w http.ResponseWriter, r *http.Request) {
	var req listAssetRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	underlying, err := uuid.Parse(req.Underlying)
	if err != nil {
		respondError(w, err)
		return
	}
	feeReceiver, err := uuid.Parse(req.FeeReceiver)
	if err != nil {
		respondError(w, err)
		return
	}
	controller, err := uuid.Parse(req.Controller)
	if err != nil {
		respondError(w, err)
		return
	}
	id := hub.AssetID(req.Asset)
	if err := s.hub.ListAsset(id, underlying, req.Decimals, req.FeeRateBps, feeReceiver, controller, s.rates); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]uint16{"asset": req.Asset})
}

func (s *Server) GetAsset(w http.ResponseWriter, r *http.Request) {
	id, err := assetParam(r)
	if err != nil {
		respondError(w, err)
		return
	}
	asset, err := s.hub.GetAsset(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, assetResponse{
		Liquidity:   asset.Liquidity.String(),
		AddedShares: asset.AddedShares.String(),
		DrawnShares: asset.DrawnShares.String(),
		DrawnIndex:  asset.DrawnIndex.String(),
		DrawnRate:   asset.DrawnRate.String(),
		Deficit:     asset.Deficit.String(),
		Swept:       asset.Swept.String(),
		Decimals:    asset.Decimals,
		Active:      asset.Active,
	})
}

func (s *Server) RegisterSpoke(w http.ResponseWriter, r *http.Request) {
	id, err := assetParam(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var req registerSpokeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	spokeID, err := uuid.Parse(req.Spoke)
	if err != nil {
		respondError(w, err)
		return
	}
	addCap, drawCap := hub.CapUnlimited, hub.CapUnlimited
	if req.AddCap != nil {
		addCap = *req.AddCap
	}
	if req.DrawCap != nil {
		drawCap = *req.DrawCap
	}
	if err := s.hub.RegisterSpoke(id, spokeID, addCap, drawCap); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"spoke": spokeID.String()})
}

func (s *Server) GetSubledger(w http.ResponseWriter, r *http.Request) {
	id, err := assetParam(r)
	if err != nil {
		respondError(w, err)
		return
	}
	spokeID, err := uuid.Parse(chi.URLParam(r, "spoke"))
	if err != nil {
		respondError(w, err)
		return
	}
	owed, err := s.hub.GetOwed(id, spokeID)
	if err != nil {
		respondError(w, err)
		return
	}
	addedAssets, err := s.hub.GetAddedAssets(id, spokeID)
	if err != nil {
		respondError(w, err)
		return
	}
	addedShares, err := s.hub.GetAddedShares(id, spokeID)
	if err != nil {
		respondError(w, err)
		return
	}
	deficit, err := s.hub.GetDeficit(id, spokeID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, subledgerResponse{
		AddedShares: addedShares.String(),
		AddedAssets: addedAssets.String(),
		OwedDrawn:   owed.Drawn.String(),
		OwedPremium: owed.Premium.String(),
		Deficit:     deficit.String(),
	})
}

func (s *Server) Accrue(w http.ResponseWriter, r *http.Request) {
	id, err := assetParam(r)
	if err != nil {
		respondError(w, err)
		return
	}
	start := time.Now()
	err = s.hub.Accrue(id)
	observability.Ledger().ObserveOperation("accrue", time.Since(start), err)
	if err != nil {
		respondError(w, err)
		return
	}
	s.recordBalances(id)
	respondJSON(w, http.StatusOK, map[string]string{"status": "accrued"})
}

func (s *Server) SetRateData(w http.ResponseWriter, r *http.Request) {
	id, err := assetParam(r)
	if err != nil {
		respondError(w, err)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		respondError(w, err)
		return
	}
	if err := s.hub.SetRateData(id, body); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// recordBalances refreshes the per-asset gauges after a mutation.
func (s *Server) recordBalances(id hub.AssetID) {
	asset, err := s.hub.GetAsset(id)
	if err != nil || asset == nil {
		return
	}
	label := strconv.FormatUint(uint64(id), 10)
	observability.Ledger().RecordBalances(label, asset.Liquidity, asset.Deficit)
}

func assetParam(r *http.Request) (hub.AssetID, error) {
	raw, err := strconv.ParseUint(chi.URLParam(r, "asset"), 10, 16)
	if err != nil {
		return 0, err
	}
	return hub.AssetID(raw), nil
}

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok || amount.Sign() <= 0 {
		return nil, errBadAmount
	}
	return amount, nil
}
