package handler

import (
	"net/http"
	"strconv"

	"parkingcash/internal/apierror"
	"parkingcash/internal/dto"
	"parkingcash/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type CajaHandler struct {
	svc     service.CashService
	pending service.PendingService
}

func NewCajaHandler(svc service.CashService, pending service.PendingService) *CajaHandler {
	return &CajaHandler{svc: svc, pending: pending}
}

// Abrir godoc
// @Summary Abre una nueva sesión de caja
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.OpenSessionRequest true "Fondo inicial"
// @Success 201 {object} dto.SessionResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/caja/abrir [post]
func (h *CajaHandler) Abrir(c *gin.Context) {
	var req dto.OpenSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	opID, ok := operatorID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Open(c.Request.Context(), opID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Cerrar godoc
// @Summary Cierra la sesión con el arqueo por método de pago
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de sesión"
// @Param body body dto.CloseSessionRequest true "Importes contados"
// @Success 200 {object} dto.SessionResponse
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/caja/{id}/cerrar [post]
func (h *CajaHandler) Cerrar(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.CloseSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	opID, ok := operatorID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Close(c.Request.Context(), id, opID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetActiva godoc
// @Summary Resumen de la sesión abierta
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.ActiveSessionResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/caja/activa [get]
func (h *CajaHandler) GetActiva(c *gin.Context) {
	resp, err := h.svc.ActiveSession(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UltimoCierre godoc
// @Summary Fondo sugerido a partir del último cierre
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.LastClosingResponse
// @Router /v1/caja/ultimo-cierre [get]
func (h *CajaHandler) UltimoCierre(c *gin.Context) {
	resp, err := h.svc.LastClosing(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PreCierre godoc
// @Summary Importes esperados y retirada sugerida antes de cerrar
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param target_float query number false "Fondo a dejar en caja"
// @Success 200 {object} dto.PreCloseInfoResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/caja/pre-cierre [get]
func (h *CajaHandler) PreCierre(c *gin.Context) {
	var target *decimal.Decimal
	if raw := c.Query("target_float"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("target_float inválido"))
			return
		}
		target = &d
	}
	resp, err := h.svc.PreCloseInfo(c.Request.Context(), target)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ObtenerSesion godoc
// @Summary Detalle de una sesión de caja
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de sesión"
// @Success 200 {object} dto.SessionResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/caja/{id} [get]
func (h *CajaHandler) ObtenerSesion(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetSession(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Historial godoc
// @Summary Sesiones cerradas, la más reciente primero
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Máximo de sesiones (30 por defecto, 100 como máximo)"
// @Success 200 {array} dto.ClosedSessionResponse
// @Router /v1/caja/historial [get]
func (h *CajaHandler) Historial(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "30"))
	resp, err := h.svc.ClosedSessions(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Retiro godoc
// @Summary Registra una retirada de efectivo
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.WithdrawalRequest true "Retirada"
// @Success 201 {object} dto.TransactionResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/caja/retiro [post]
func (h *CajaHandler) Retiro(c *gin.Context) {
	var req dto.WithdrawalRequest
	if !bindAndValidate(c, &req) {
		return
	}
	opID, ok := operatorID(c)
	if !ok {
		return
	}
	resp, err := h.svc.RegisterWithdrawal(c.Request.Context(), opID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// VentaProducto godoc
// @Summary Registra una venta de producto en mostrador
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.ProductSaleRequest true "Venta"
// @Success 201 {object} dto.ProductSaleResponse
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/caja/venta-producto [post]
func (h *CajaHandler) VentaProducto(c *gin.Context) {
	var req dto.ProductSaleRequest
	if !bindAndValidate(c, &req) {
		return
	}
	opID, ok := operatorID(c)
	if !ok {
		return
	}
	resp, err := h.svc.RegisterProductSale(c.Request.Context(), opID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Transacciones godoc
// @Summary Movimientos de una sesión, el más reciente primero
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de sesión"
// @Success 200 {array} dto.TransactionResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/caja/{id}/transacciones [get]
func (h *CajaHandler) Transacciones(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ListTransactions(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DeshacerTransaccion godoc
// @Summary Deshace un movimiento de la sesión abierta
// @Tags caja
// @Security BearerAuth
// @Param id path string true "ID de transacción"
// @Success 204
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/caja/transacciones/{id} [delete]
func (h *CajaHandler) DeshacerTransaccion(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	opID, ok := operatorID(c)
	if !ok {
		return
	}
	if err := h.svc.UndoTransaction(c.Request.Context(), id, opID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ── Pendientes ────────────────────────────────────────────────────────────────

// Pendientes godoc
// @Summary Cobros de estancias aún no registrados en caja
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.PendingListResponse
// @Router /v1/caja/pendientes [get]
func (h *CajaHandler) Pendientes(c *gin.Context) {
	resp, err := h.pending.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RegistrarPendiente godoc
// @Summary Registra en caja el cobro pendiente de una estancia
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param stay_id path string true "ID de estancia"
// @Param body body dto.RegisterPendingRequest true "Pago"
// @Success 201 {object} dto.TransactionResponse
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/caja/pendientes/{stay_id} [post]
func (h *CajaHandler) RegistrarPendiente(c *gin.Context) {
	stayID, ok := pathUUID(c, "stay_id")
	if !ok {
		return
	}
	var req dto.RegisterPendingRequest
	if !bindAndValidate(c, &req) {
		return
	}
	opID, ok := operatorID(c)
	if !ok {
		return
	}
	resp, err := h.pending.Register(c.Request.Context(), stayID, opID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}
