package controllers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"Gin_postgres_redis_equipment_loans/app"
	"Gin_postgres_redis_equipment_loans/engine"
	"Gin_postgres_redis_equipment_loans/lifecycle"
	"Gin_postgres_redis_equipment_loans/models"
)

type BorrowController struct{ *Srv }

func NewBorrowController(s *Srv) *BorrowController { return &BorrowController{Srv: s} }

type itemIn struct {
	EquipmentID string `json:"equipmentId"`
	windowIn
	Note string `json:"note,omitempty"`
}

type submitIn struct {
	// RequesterID defaults to the caller; only privileged roles may set
	// someone else.
	RequesterID string  `json:"requesterId,omitempty"`
	ClassID     *string `json:"classId,omitempty"`
	itemIn
	// Items turns the request into a group submission.
	Items []itemIn `json:"items,omitempty"`
}

// POST /api/borrows
func (bc *BorrowController) Submit(c *gin.Context) {
	var in submitIn
	if err := bindJSON(c, &in, false); err != nil {
		app.AbortWithError(c, err)
		return
	}
	actor := app.Actor(c)
	if in.RequesterID == "" {
		in.RequesterID = actor.ID
	}

	if len(in.Items) == 0 {
		b, err := bc.Engine.Submit(c.Request.Context(), actor, engine.SubmitRequest{
			EquipmentID: in.EquipmentID,
			RequesterID: in.RequesterID,
			ClassID:     in.ClassID,
			Window:      in.window(),
			Note:        in.Note,
		})
		if err != nil {
			app.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, app.H{"borrow": b})
		return
	}

	req := engine.GroupRequest{RequesterID: in.RequesterID, ClassID: in.ClassID}
	for _, it := range in.Items {
		req.Items = append(req.Items, engine.GroupItem{EquipmentID: it.EquipmentID, Window: it.window(), Note: it.Note})
	}
	bs, err := bc.Engine.SubmitGroup(c.Request.Context(), actor, req)
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	resp := app.H{"borrows": bs}
	if len(bs) > 0 && bs[0].GroupID != nil {
		resp["groupId"] = *bs[0].GroupID
	}
	c.JSON(http.StatusCreated, resp)
}

// GET /api/borrows?status=PENDING,APPROVED&equipmentId=&groupId=&requesterId=
// Non-privileged callers only ever see their own loans.
func (bc *BorrowController) List(c *gin.Context) {
	actor := app.Actor(c)
	f := engine.BorrowFilter{
		EquipmentID: c.Query("equipmentId"),
		GroupID:     c.Query("groupId"),
		RequesterID: c.Query("requesterId"),
	}
	if !actor.Privileged() {
		f.RequesterID = actor.ID
	}
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			s := models.BorrowStatus(strings.ToUpper(strings.TrimSpace(part)))
			if !s.Valid() {
				app.AbortWithError(c, fmt.Errorf("%w: unknown status %q", app.ErrBadRequest, part))
				return
			}
			f.Statuses = append(f.Statuses, s)
		}
	}

	bs, err := bc.Engine.ListBorrows(c.Request.Context(), f)
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"borrows": bs, "total": len(bs)})
}

// visible loads a loan the caller may look at.
func (bc *BorrowController) visible(c *gin.Context) (*models.Borrow, bool) {
	b, err := bc.Engine.GetBorrow(c.Request.Context(), c.Param("id"))
	if err != nil {
		app.AbortWithError(c, err)
		return nil, false
	}
	actor := app.Actor(c)
	if !actor.Privileged() && !actor.Owns(b) {
		app.AbortWithError(c, fmt.Errorf("%w: loan %s", lifecycle.ErrForbidden, b.ID))
		return nil, false
	}
	return b, true
}

// GET /api/borrows/:id
func (bc *BorrowController) Get(c *gin.Context) {
	b, ok := bc.visible(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, app.H{"borrow": b})
}

// DELETE /api/borrows/:id
func (bc *BorrowController) Delete(c *gin.Context) {
	if err := bc.Engine.Delete(c.Request.Context(), c.Param("id"), app.Actor(c)); err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// Transition serves POST /api/borrows/:id/<action> and
// POST /api/groups/:groupId/<action>.
func (bc *BorrowController) Transition(tr lifecycle.Transition) gin.HandlerFunc {
	return func(c *gin.Context) {
		target := engine.Loan(c.Param("id"))
		if gid := c.Param("groupId"); gid != "" {
			target = engine.Group(gid)
		}

		var in struct {
			Window     *windowIn              `json:"window,omitempty"`
			Deficiency *engine.DeficiencyInfo `json:"deficiency,omitempty"`
		}
		if err := bindJSON(c, &in, true); err != nil {
			app.AbortWithError(c, err)
			return
		}

		ctx, actor := c.Request.Context(), app.Actor(c)
		var (
			res engine.Result
			err error
		)
		switch tr {
		case lifecycle.Approve:
			var w *lifecycle.Window
			if in.Window != nil {
				ww := in.Window.window()
				w = &ww
			}
			res, err = bc.Engine.Approve(ctx, target, actor, w)
		case lifecycle.Reject:
			res, err = bc.Engine.Reject(ctx, target, actor)
		case lifecycle.Cancel:
			res, err = bc.Engine.Cancel(ctx, target, actor)
		case lifecycle.Checkout:
			res, err = bc.Engine.Checkout(ctx, target, actor)
		case lifecycle.RequestReturn:
			res, err = bc.Engine.RequestReturn(ctx, target, actor)
		case lifecycle.FinalizeReturn:
			res, err = bc.Engine.FinalizeReturn(ctx, target, actor, in.Deficiency)
		default:
			err = fmt.Errorf("%w: %s is not an API action", app.ErrBadRequest, tr)
		}
		if err != nil {
			app.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// POST /api/borrows/:id/deficiencies
func (bc *BorrowController) ReportDeficiency(c *gin.Context) {
	var in engine.DeficiencyInfo
	if err := bindJSON(c, &in, false); err != nil {
		app.AbortWithError(c, err)
		return
	}
	d, err := bc.Engine.ReportDeficiency(c.Request.Context(), c.Param("id"), app.Actor(c), in)
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"deficiency": d})
}

// GET /api/borrows/:id/deficiencies
func (bc *BorrowController) Deficiencies(c *gin.Context) {
	b, ok := bc.visible(c)
	if !ok {
		return
	}
	ds, err := bc.Engine.Deficiencies(c.Request.Context(), b.ID)
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"deficiencies": ds})
}
