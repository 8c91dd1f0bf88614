package controllers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"Gin_postgres_redis_equipment_loans/app"
	"Gin_postgres_redis_equipment_loans/engine"
	"Gin_postgres_redis_equipment_loans/models"
)

type EquipmentController struct{ *Srv }

func NewEquipmentController(s *Srv) *EquipmentController { return &EquipmentController{Srv: s} }

type createEquipmentReq struct {
	Serial string `json:"serial" binding:"required"`
	Name   string `json:"name" binding:"required"`
	Units  int    `json:"units"`
}

// POST /api/equipment
func (ec *EquipmentController) Create(c *gin.Context) {
	var req createEquipmentReq
	if err := bindJSON(c, &req, false); err != nil {
		app.AbortWithError(c, err)
		return
	}
	eq, err := ec.Engine.CreateEquipment(c.Request.Context(), app.Actor(c), engine.NewEquipment{
		Serial: req.Serial,
		Name:   req.Name,
		Units:  req.Units,
	})
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"equipment": eq})
}

// GET /api/equipment
func (ec *EquipmentController) List(c *gin.Context) {
	list, err := ec.Engine.ListEquipment(c.Request.Context())
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"equipment": list, "total": len(list)})
}

// GET /api/equipment/:id
func (ec *EquipmentController) Get(c *gin.Context) {
	eq, err := ec.Engine.GetEquipment(c.Request.Context(), c.Param("id"))
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"equipment": eq})
}

// GET /api/equipment/:id/availability?start=&end=
// Without a window the answer is for the current instant.
func (ec *EquipmentController) Availability(c *gin.Context) {
	w, ok, err := windowQuery(c)
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	var a *engine.Availability
	if ok {
		a, err = ec.Engine.Availability(c.Request.Context(), c.Param("id"), w)
	} else {
		a, err = ec.Engine.CurrentAvailability(c.Request.Context(), c.Param("id"))
	}
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// PUT /api/equipment/:id/condition
func (ec *EquipmentController) SetCondition(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := bindJSON(c, &req, false); err != nil {
		app.AbortWithError(c, err)
		return
	}
	status := models.EquipmentStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if !status.Valid() {
		app.AbortWithError(c, fmt.Errorf("%w: unknown equipment status %q", app.ErrBadRequest, req.Status))
		return
	}
	eq, err := ec.Engine.SetCondition(c.Request.Context(), app.Actor(c), c.Param("id"), status)
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"equipment": eq})
}

// POST /api/equipment/:id/resync
func (ec *EquipmentController) Resync(c *gin.Context) {
	eq, err := ec.Engine.Resync(c.Request.Context(), c.Param("id"))
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"equipment": eq})
}
