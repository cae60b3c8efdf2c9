package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/allocation-service/internal/application"
	apperrors "github.com/wms-platform/allocation-service/pkg/errors"
	"github.com/wms-platform/allocation-service/pkg/logging"
	"github.com/wms-platform/allocation-service/pkg/middleware"
)

func registerRoutes(
	router *gin.Engine,
	logger *logging.Logger,
	allocationSvc *application.AllocationService,
	putawaySvc *application.PutawayService,
	stockSvc *application.StockService,
	sequencer *application.Sequencer,
) {
	respond := middleware.NewErrorResponder(logger)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RequireCompanyID())

	allocations := v1.Group("/allocations")
	{
		allocations.POST("", func(c *gin.Context) {
			var req application.AllocationRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				respond.Respond(c, apperrors.NewValidation(err.Error()))
				return
			}
			result, err := allocationSvc.Allocate(c.Request.Context(), middleware.GetCompanyID(c), req, middleware.GetUserID(c))
			if err != nil {
				respond.Respond(c, err)
				return
			}
			c.JSON(http.StatusCreated, result)
		})

		allocations.POST("/bulk", func(c *gin.Context) {
			var req application.BulkAllocationRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				respond.Respond(c, apperrors.NewValidation(err.Error()))
				return
			}
			result, err := allocationSvc.BulkAllocate(c.Request.Context(), middleware.GetCompanyID(c), req, middleware.GetUserID(c))
			if err != nil {
				respond.Respond(c, err)
				return
			}
			c.JSON(http.StatusCreated, result)
		})

		allocations.DELETE("/:id", func(c *gin.Context) {
			cancelled, err := allocationSvc.Deallocate(c.Request.Context(), middleware.GetCompanyID(c), c.Param("id"), middleware.GetUserID(c))
			if err != nil {
				respond.Respond(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"cancelled": cancelled})
		})

		allocations.POST("/:id/confirm-pick", func(c *gin.Context) {
			var body struct {
				PickedQty int `json:"pickedQty" binding:"min=0"`
			}
			if err := c.ShouldBindJSON(&body); err != nil {
				respond.Respond(c, apperrors.NewValidation(err.Error()))
				return
			}
			cmd := application.ConfirmPickCommand{AllocationID: c.Param("id"), PickedQty: body.PickedQty}
			result, err := allocationSvc.ConfirmPick(c.Request.Context(), middleware.GetCompanyID(c), cmd, middleware.GetUserID(c))
			if err != nil {
				respond.Respond(c, err)
				return
			}
			c.JSON(http.StatusOK, result)
		})

		allocations.POST("/deallocate-by-order/:orderId", func(c *gin.Context) {
			count, err := allocationSvc.DeallocateByOrder(c.Request.Context(), middleware.GetCompanyID(c), c.Param("orderId"), middleware.GetUserID(c))
			if err != nil {
				respond.Respond(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"cancelled": count})
		})

		allocations.POST("/deallocate-by-wave/:waveId", func(c *gin.Context) {
			count, err := allocationSvc.DeallocateByWave(c.Request.Context(), middleware.GetCompanyID(c), c.Param("waveId"), middleware.GetUserID(c))
			if err != nil {
				respond.Respond(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"cancelled": count})
		})
	}

	v1.GET("/availability", func(c *gin.Context) {
		required, _ := strconv.Atoi(c.DefaultQuery("requiredQty", "0"))
		skuID := c.Query("skuId")
		locationID := c.Query("locationId")
		if skuID == "" || locationID == "" {
			respond.Respond(c, apperrors.NewValidation("skuId and locationId query parameters are required"))
			return
		}
		result, err := allocationSvc.CheckAvailability(c.Request.Context(), middleware.GetCompanyID(c), skuID, locationID, required)
		if err != nil {
			respond.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	})

	stock := v1.Group("/stock")
	{
		stock.GET("", func(c *gin.Context) {
			skuID := c.Query("skuId")
			locationID := c.Query("locationId")
			if skuID == "" || locationID == "" {
				respond.Respond(c, apperrors.NewValidation("skuId and locationId query parameters are required"))
				return
			}
			rows, err := stockSvc.GetRows(c.Request.Context(), middleware.GetCompanyID(c), skuID, locationID)
			if err != nil {
				respond.Respond(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"rows": rows})
		})

		stock.POST("/adjust", func(c *gin.Context) {
			var cmd application.AdjustStockCommand
			if err := c.ShouldBindJSON(&cmd); err != nil {
				respond.Respond(c, apperrors.NewValidation(err.Error()))
				return
			}
			row, err := stockSvc.Adjust(c.Request.Context(), middleware.GetCompanyID(c), cmd)
			if err != nil {
				respond.Respond(c, err)
				return
			}
			c.JSON(http.StatusOK, row)
		})

		stock.DELETE("/:id", func(c *gin.Context) {
			if err := stockSvc.Delete(c.Request.Context(), middleware.GetCompanyID(c), c.Param("id")); err != nil {
				respond.Respond(c, err)
				return
			}
			c.Status(http.StatusNoContent)
		})
	}

	putaway := v1.Group("/putaway")
	{
		putaway.POST("/suggest-bin", func(c *gin.Context) {
			var cmd application.SuggestBinCommand
			if err := c.ShouldBindJSON(&cmd); err != nil {
				respond.Respond(c, apperrors.NewValidation(err.Error()))
				return
			}
			result, err := putawaySvc.SuggestBins(c.Request.Context(), middleware.GetCompanyID(c), cmd)
			if err != nil {
				respond.Respond(c, err)
				return
			}
			c.JSON(http.StatusOK, result)
		})

		putaway.POST("/from-goods-receipt/:grNo", func(c *gin.Context) {
			cmd := application.CreatePutawayTasksCommand{
				GRNo:        c.Param("grNo"),
				AutoSuggest: c.DefaultQuery("autoSuggest", "false") == "true",
			}
			tasks, err := putawaySvc.CreateTasksFromGoodsReceipt(c.Request.Context(), middleware.GetCompanyID(c), cmd, middleware.GetUserID(c))
			if err != nil {
				respond.Respond(c, err)
				return
			}
			c.JSON(http.StatusCreated, gin.H{"tasks": tasks})
		})

		putaway.GET("/tasks/:id", func(c *gin.Context) {
			task, err := putawaySvc.GetTask(c.Request.Context(), middleware.GetCompanyID(c), c.Param("id"))
			if err != nil {
				respond.Respond(c, err)
				return
			}
			c.JSON(http.StatusOK, task)
		})

		putaway.POST("/tasks/:id/assign", func(c *gin.Context) {
			var body struct {
				AssigneeID string `json:"assigneeId" binding:"required"`
			}
			if err := c.ShouldBindJSON(&body); err != nil {
				respond.Respond(c, apperrors.NewValidation(err.Error()))
				return
			}
			cmd := application.AssignTaskCommand{TaskID: c.Param("id"), AssigneeID: body.AssigneeID}
			task, err := putawaySvc.AssignTask(c.Request.Context(), middleware.GetCompanyID(c), cmd, middleware.GetUserID(c))
			if err != nil {
				respond.Respond(c, err)
				return
			}
			c.JSON(http.StatusOK, task)
		})

		putaway.POST("/tasks/:id/start", func(c *gin.Context) {
			task, err := putawaySvc.StartTask(c.Request.Context(), middleware.GetCompanyID(c), c.Param("id"), middleware.GetUserID(c))
			if err != nil {
				respond.Respond(c, err)
				return
			}
			c.JSON(http.StatusOK, task)
		})

		putaway.POST("/tasks/:id/complete", func(c *gin.Context) {
			var body struct {
				ActualBinID string `json:"actualBinId"`
				ActualQty   *int   `json:"actualQty"`
				Notes       string `json:"notes"`
			}
			if err := c.ShouldBindJSON(&body); err != nil {
				respond.Respond(c, apperrors.NewValidation(err.Error()))
				return
			}
			cmd := application.CompleteTaskCommand{
				TaskID:      c.Param("id"),
				ActualBinID: body.ActualBinID,
				ActualQty:   body.ActualQty,
				Notes:       body.Notes,
			}
			task, err := putawaySvc.CompleteTask(c.Request.Context(), middleware.GetCompanyID(c), cmd, middleware.GetUserID(c))
			if err != nil {
				respond.Respond(c, err)
				return
			}
			c.JSON(http.StatusOK, task)
		})

		putaway.POST("/tasks/:id/cancel", func(c *gin.Context) {
			var body struct {
				Reason string `json:"reason"`
			}
			if err := c.ShouldBindJSON(&body); err != nil {
				respond.Respond(c, apperrors.NewValidation(err.Error()))
				return
			}
			cmd := application.CancelTaskCommand{TaskID: c.Param("id"), Reason: body.Reason}
			task, err := putawaySvc.CancelTask(c.Request.Context(), middleware.GetCompanyID(c), cmd, middleware.GetUserID(c))
			if err != nil {
				respond.Respond(c, err)
				return
			}
			c.JSON(http.StatusOK, task)
		})

		putaway.GET("/summary", func(c *gin.Context) {
			summary, err := putawaySvc.GetSummary(c.Request.Context(), middleware.GetCompanyID(c), c.Query("locationId"))
			if err != nil {
				respond.Respond(c, err)
				return
			}
			c.JSON(http.StatusOK, summary)
		})
	}

	admin := v1.Group("/admin/fifo")
	{
		admin.POST("/reassign", func(c *gin.Context) {
			var body struct {
				SKUID      string `json:"skuId" binding:"required"`
				LocationID string `json:"locationId" binding:"required"`
			}
			if err := c.ShouldBindJSON(&body); err != nil {
				respond.Respond(c, apperrors.NewValidation(err.Error()))
				return
			}
			count, err := sequencer.Reassign(c.Request.Context(), middleware.GetCompanyID(c), body.SKUID, body.LocationID)
			if err != nil {
				respond.Respond(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"rows": count})
		})

		admin.POST("/reassign-all", func(c *gin.Context) {
			count, err := sequencer.BulkReassign(c.Request.Context(), middleware.GetCompanyID(c))
			if err != nil {
				respond.Respond(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"rows": count})
		})
	}
}
