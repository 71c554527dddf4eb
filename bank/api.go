package bank

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/hemachand1989/banking-design-patterns/bank/models"
	"github.com/hemachand1989/banking-design-patterns/bank/repository"
)

// API is a HTTP API for the bank service
type API struct {
	bank *Service
}

func NewAPI(bank *Service) *API {
	return &API{
		bank: bank,
	}
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", a.createAccount)
		r.Get("/", a.listAccounts)
		r.Route("/{accountID}", func(r chi.Router) {
			r.Get("/", a.getAccount)
			r.Get("/transactions", a.getTransactions)
			r.Post("/deposits", a.deposit)
			r.Post("/withdrawals", a.withdraw)
		})
	})
	r.Post("/transfers", a.transfer)
	r.Post("/transactions/{transactionID}/reversal", a.reverse)
	r.Get("/fees/quote", a.quoteFee)
	r.Route("/loans", func(r chi.Router) {
		r.Post("/", a.applyForLoan)
		r.Get("/", a.listLoans)
		r.Get("/{loanID}", a.getLoan)
	})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInsufficientFunds),
		errors.Is(err, models.ErrNotReversible),
		errors.Is(err, models.ErrApplicationDecided),
		errors.Is(err, models.ErrAlreadyCredited),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrSameAccount),
		errors.Is(err, models.ErrInvalidAccountType),
		errors.Is(err, models.ErrInvalidCreditScore),
		errors.Is(err, models.ErrOwnerRequired):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (a *API) createAccount(w http.ResponseWriter, r *http.Request) {
	create := models.CreateAccount{}
	err := json.NewDecoder(r.Body).Decode(&create)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	account, err := a.bank.CreateAccount(r.Context(), create)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

// listAccounts lists all accounts, or the one matching ?number=.
func (a *API) listAccounts(w http.ResponseWriter, r *http.Request) {
	if number := r.URL.Query().Get("number"); number != "" {
		account, err := a.bank.GetAccountByNumber(r.Context(), number)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, []*models.Account{account})
		return
	}

	accounts, err := a.bank.ListAccounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (a *API) getAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	account, err := a.bank.GetAccount(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

func (a *API) getTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	transactions, err := a.bank.ListTransactions(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transactions)
}

func (a *API) deposit(w http.ResponseWriter, r *http.Request) {
	var m models.MoneyMovement
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tx, err := a.bank.Deposit(r.Context(), chi.URLParam(r, "accountID"), m)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (a *API) withdraw(w http.ResponseWriter, r *http.Request) {
	var m models.MoneyMovement
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tx, err := a.bank.Withdraw(r.Context(), chi.URLParam(r, "accountID"), m)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (a *API) transfer(w http.ResponseWriter, r *http.Request) {
	var req models.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	transfer, err := a.bank.Transfer(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, transfer)
}

func (a *API) reverse(w http.ResponseWriter, r *http.Request) {
	reversals, err := a.bank.Reverse(r.Context(), chi.URLParam(r, "transactionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reversals)
}

// quoteFee answers GET /fees/quote?account_type=savings&amount=100.00
func (a *API) quoteFee(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := decimal.NewFromString(q.Get("amount"))
	if err != nil {
		http.Error(w, "amount: "+err.Error(), http.StatusBadRequest)
		return
	}

	quote, err := a.bank.QuoteFee(models.AccountType(q.Get("account_type")), amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (a *API) applyForLoan(w http.ResponseWriter, r *http.Request) {
	var req models.LoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	app, err := a.bank.ApplyForLoan(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

func (a *API) listLoans(w http.ResponseWriter, r *http.Request) {
	apps, err := a.bank.ListLoanApplications(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (a *API) getLoan(w http.ResponseWriter, r *http.Request) {
	app, err := a.bank.GetLoanApplication(r.Context(), chi.URLParam(r, "loanID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}
