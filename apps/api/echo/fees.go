package echoapi

import (
	"net/http"
	"sort"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/fees"
)

type feesApi struct {
	svc        *fees.Service
	agent      *fees.Agent
	validate   *validator.Validate
	translator ut.Translator
}

func registerFeesAPI(g *echo.Group, deps ServerDeps) {
	api := feesApi{
		svc:        deps.FeeSvc,
		agent:      deps.Agent,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	fg := g.Group("/fees")

	// fee structure catalog
	fg.POST("/categories", api.createCategory)
	fg.GET("/categories", api.queryCategories)
	fg.PUT("/categories/:id", api.updateCategory)
	fg.DELETE("/categories/:id", api.destroyCategory)

	fg.POST("/structures", api.createStructure)
	fg.GET("/structures", api.queryStructures)
	fg.PUT("/structures/:id", api.updateStructure)
	fg.DELETE("/structures/:id", api.destroyStructure)

	// payment ledger
	fg.POST("/payments", api.recordPayment)
	fg.GET("/payments", api.queryPayments)
	fg.PUT("/payments/:id", api.updatePayment)

	// student fee accounts
	fg.GET("/accounts", api.queryAccounts)
	fg.GET("/accounts/:regNo", api.retrieveAccount)
	fg.POST("/accounts/recalc", api.recalcAccounts)
	fg.GET("/summary", api.summary)

	// automation runner
	fg.POST("/agent/run", api.runAgent)
	fg.GET("/agent/runs", api.queryAgentRuns)
}

// Handlers

func (api *feesApi) createCategory(ctx echo.Context) error {
	var data fees.NewCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCategory")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cat, err := api.svc.CreateCategory(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating category")
	}
	return ctx.JSON(http.StatusCreated, cat)
}

func (api *feesApi) queryCategories(ctx echo.Context) error {
	cats, err := api.svc.QueryCategories(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying categories")
	}
	if cats == nil {
		cats = []fees.Category{}
	}
	return ctx.JSON(http.StatusOK, cats)
}

func (api *feesApi) updateCategory(ctx echo.Context) error {
	var data fees.UpdateCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCategory")
	}

	reqCtx := ctx.Request().Context()
	cat, err := api.svc.GetCategory(reqCtx, ctx.Param("id"))
	if err != nil {
		return err
	}
	if err = data.Validate(cat, api.validate); err != nil {
		return err
	}

	cat, err = api.svc.UpdateCategory(reqCtx, cat.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating category")
	}
	return ctx.JSON(http.StatusOK, cat)
}

func (api *feesApi) destroyCategory(ctx echo.Context) error {
	if err := api.svc.DeleteCategory(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *feesApi) createStructure(ctx echo.Context) error {
	var data fees.NewStructure
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStructure")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.CreateStructure(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *feesApi) queryStructures(ctx echo.Context) error {
	filter := new(fees.StructureQueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []fees.Structure{})
	}

	ss, err := api.svc.QueryStructures(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying structures")
	}
	if ss == nil {
		ss = []fees.Structure{}
	}
	return ctx.JSON(http.StatusOK, ss)
}

func (api *feesApi) updateStructure(ctx echo.Context) error {
	var data fees.UpdateStructure
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStructure")
	}

	reqCtx := ctx.Request().Context()
	s, err := api.svc.GetStructure(reqCtx, ctx.Param("id"))
	if err != nil {
		return err
	}
	if err = data.Validate(s, api.validate); err != nil {
		return err
	}

	s, err = api.svc.UpdateStructure(reqCtx, s.ID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *feesApi) destroyStructure(ctx echo.Context) error {
	if err := api.svc.DeleteStructure(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *feesApi) recordPayment(ctx echo.Context) error {
	var data fees.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	pmt, acct, err := api.svc.RecordPayment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording payment")
	}
	return ctx.JSON(http.StatusCreated, PaymentResponse{Payment: pmt, Account: acct})
}

func (api *feesApi) queryPayments(ctx echo.Context) error {
	pmts, err := api.svc.QueryPayments(ctx.Request().Context(), ctx.QueryParam("reg_no"))
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if pmts == nil {
		pmts = []fees.Payment{}
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)
	applyPaymentOrdering(pmts, ordering)

	return ctx.JSON(http.StatusOK, pmts)
}

func (api *feesApi) updatePayment(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	orig, err := api.svc.GetPayment(reqCtx, ctx.Param("id"))
	if err != nil {
		return err
	}

	var data fees.UpdatePayment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePayment")
	}
	if err = data.Validate(orig, api.validate); err != nil {
		return err
	}

	pmt, acct, err := api.svc.UpdatePayment(reqCtx, orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating payment")
	}
	return ctx.JSON(http.StatusOK, PaymentResponse{Payment: pmt, Account: acct})
}

func (api *feesApi) queryAccounts(ctx echo.Context) error {
	accts, err := api.svc.QueryAccounts(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying accounts")
	}
	if accts == nil {
		accts = []fees.Account{}
	}
	return ctx.JSON(http.StatusOK, accts)
}

func (api *feesApi) retrieveAccount(ctx echo.Context) error {
	acct, err := api.svc.GetAccountByRegNo(ctx.Request().Context(), ctx.Param("regNo"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, acct)
}

// recalcAccounts reconciles every account on demand, outside the daily run.
func (api *feesApi) recalcAccounts(ctx echo.Context) error {
	accts, err := api.svc.RecalcAll(ctx.Request().Context(), fees.Now())
	if err != nil {
		return errors.Wrap(err, "reconciling accounts")
	}
	if accts == nil {
		accts = []fees.Account{}
	}
	return ctx.JSON(http.StatusOK, accts)
}

func (api *feesApi) summary(ctx echo.Context) error {
	sum, err := api.svc.Summarize(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "summarizing accounts")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *feesApi) runAgent(ctx echo.Context) error {
	entries, err := api.agent.Run(ctx.Request().Context(), fees.Now())
	if err != nil {
		return errors.Wrap(err, "running agent")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *feesApi) queryAgentRuns(ctx echo.Context) error {
	runs, err := api.svc.RecentAgentRuns(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying agent runs")
	}
	if runs == nil {
		runs = []fees.AgentRun{}
	}
	return ctx.JSON(http.StatusOK, runs)
}

func applyPaymentOrdering(pmts []fees.Payment, ordering *Ordering) {
	for i := len(ordering.Orderings) - 1; i >= 0; i-- {
		ord := ordering.Orderings[i]
		var less func(a, b fees.Payment) bool
		switch ord.Field {
		case "paid_on":
			less = func(a, b fees.Payment) bool { return a.PaidOn.Before(b.PaidOn) }
		case "amount":
			less = func(a, b fees.Payment) bool { return a.Amount.LessThan(b.Amount) }
		default:
			continue
		}
		sort.SliceStable(pmts, func(a, b int) bool {
			if ord.Ascending {
				return less(pmts[a], pmts[b])
			}
			return less(pmts[b], pmts[a])
		})
	}
}

type PaymentResponse struct {
	Payment fees.Payment  `json:"payment"`
	Account *fees.Account `json:"account,omitempty"`
}
