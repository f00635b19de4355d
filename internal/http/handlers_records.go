package http

import (
	"net/http"

	"saldo/internal/core"
	"saldo/internal/ledger"
	"saldo/internal/log"
)

func (s *Server) handleListDebts(w http.ResponseWriter, r *http.Request) {
	scope := scopeOf(r)
	state, err := ParseViewState(r.URL.Query(), s.defaultState())
	if err != nil {
		writeError(w, r, err)
		return
	}
	l, err := s.records.Snapshot(r.Context(), scope)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v := ledger.DebtView(l, state.Query())
	out := debtListJSON{
		Mode:               state.Mode,
		Period:             state.Period.String(),
		Debts:              make([]recordJSON, 0, len(v.Debts)),
		DisplayedTotal:     v.DisplayedTotal,
		OutstandingAllTime: v.OutstandingAllTime,
	}
	for _, d := range v.Debts {
		out.Debts = append(out.Debts, debtJSON(d))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleListIncomes(w http.ResponseWriter, r *http.Request) {
	scope := scopeOf(r)
	state, err := ParseViewState(r.URL.Query(), s.defaultState())
	if err != nil {
		writeError(w, r, err)
		return
	}
	l, err := s.records.Snapshot(r.Context(), scope)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v := ledger.IncomeView(l, state.Query())
	out := incomeListJSON{
		Mode:           state.Mode,
		Period:         state.Period.String(),
		Incomes:        make([]recordJSON, 0, len(v.Incomes)),
		DisplayedTotal: v.DisplayedTotal,
		MonthlyIncome:  v.MonthlyIncome,
		Goal:           v.Goal,
		Progress:       v.Progress,
	}
	for _, i := range v.Incomes {
		out.Incomes = append(out.Incomes, incomeJSON(i))
	}
	NewJSONResponse().Body(out).Write(w)
}

type createdJSON struct {
	recordJSON
	Warning string `json:"warning,omitempty"`
}

// handleCreate stores a debt or income from a JSON, form or multipart body.
// A rejected image does not fail the request; the record is saved without it
// and the response carries a warning.
func (s *Server) handleCreate(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := NewRequestBodyParser(w, r, s.maxUpload)
		defer p.Close()
		if err := p.Err(); err != nil {
			writeError(w, r, err)
			return
		}
		draft, err := p.Draft(s.loc)
		if err != nil {
			writeError(w, r, err)
			return
		}
		created, err := s.records.Create(r.Context(), scopeOf(r), kind, draft, p.File())
		if err != nil {
			writeError(w, r, err)
			return
		}

		doc := created.Document
		var out createdJSON
		if kind == core.KindDebt {
			out.recordJSON = debtJSON(doc.Debt())
		} else {
			out.recordJSON = incomeJSON(doc.Income())
		}
		if created.UploadErr != nil {
			out.Warning = created.UploadErr.Error()
			log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).WarnContext(r.Context(), "Record saved without attachment",
				log.NewFields().WithOperation(log.OpUpload).WithErrorType(log.ErrorTypeUpload).
					WithError(created.UploadErr).WithRecord(scopeOf(r), kind.String(), doc.ID).ToSlice()...)
		}
		NewJSONResponse().
			Status(http.StatusCreated).
			Header("Location", "/api/"+kind.String()+"/"+doc.ID).
			Body(out).
			Write(w)
	}
}

// handleUpdateDebt accepts {"paid": bool}; nothing else about a debt changes.
func (s *Server) handleUpdateDebt(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r, s.maxUpload)
	defer p.Close()
	if err := p.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	paid, err := p.Bool("paid")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.records.UpdateDebtStatus(r.Context(), scopeOf(r), r.PathValue("id"), paid); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleDelete(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.records.Delete(r.Context(), scopeOf(r), kind, r.PathValue("id")); err != nil {
			writeError(w, r, err)
			return
		}
		NewJSONResponse().Status(http.StatusNoContent).Write(w)
	}
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	g, err := s.records.Goal(r.Context(), scopeOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(goalJSON{Amount: g.Amount}).Write(w)
}

func (s *Server) handleSetGoal(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r, s.maxUpload)
	defer p.Close()
	if err := p.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		writeError(w, r, core.ErrInvalidGoal)
		return
	}
	g := core.Goal{Amount: amount}
	if err := s.records.SetGoal(r.Context(), scopeOf(r), g); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(goalJSON{Amount: g.Amount}).Write(w)
}
