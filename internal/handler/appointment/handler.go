package appointment

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/appointment"
	"github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

type Handler struct {
	service *appointment.Service
}

func NewHandler(service *appointment.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes expects r to be behind authentication.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	admin := auth.RequireRole(model.RoleAdmin)
	patient := auth.RequireRole(model.RolePatient)
	doctor := auth.RequireRole(model.RoleDoctor)
	anyone := auth.RequireRole(model.RoleAdmin, model.RolePatient, model.RoleDoctor)

	appointments := r.Group("/appointments")
	{
		appointments.POST("", admin, h.Book)
		appointments.GET("", admin, h.Schedule)
		appointments.POST("/self", patient, h.SelfBook)
		appointments.GET("/mine", patient, h.MyHistory)
		appointments.GET("/worklist", doctor, h.Worklist)

		appointments.GET("/:id", anyone, h.Get)
		appointments.GET("/:id/eligible-staff", admin, h.EligibleStaff)
		appointments.POST("/:id/verify", admin, h.Verify)
		appointments.POST("/:id/complete", doctor, h.Complete)
		appointments.POST("/:id/cancel", auth.RequireRole(model.RoleAdmin, model.RolePatient), h.Cancel)
		appointments.POST("/:id/reschedule", admin, h.Reschedule)
		appointments.DELETE("/:id", admin, h.Delete)
	}
}

// Book is the front desk booking.
func (h *Handler) Book(c *gin.Context) {
	var req model.BookAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	book := appointment.BookRequest{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Slot:      model.Slot{Date: req.Date, Time: req.Time},
		Channel:   model.ChannelFrontDesk,
	}
	if req.BlockedDate != "" || req.BlockedTime != "" {
		if req.BlockedDate == "" || req.BlockedTime == "" {
			httputil.RespondWithBadRequest(c, "blocked_date and blocked_time go together")
			return
		}
		book.Blocked = &model.Slot{Date: req.BlockedDate, Time: req.BlockedTime}
	}

	apt, err := h.service.Book(c.Request.Context(), book)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, apt)
}

// SelfBook books for the calling patient through the portal.
func (h *Handler) SelfBook(c *gin.Context) {
	principal, ok := handler.Principal(c)
	if !ok {
		return
	}
	var req model.SelfBookRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	apt, err := h.service.Book(c.Request.Context(), appointment.BookRequest{
		PatientID: principal.ID,
		DoctorID:  req.DoctorID,
		Slot:      model.Slot{Date: req.Date, Time: req.Time},
		Channel:   model.ChannelSelfService,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, apt)
}

func (h *Handler) Schedule(c *gin.Context) {
	var filters model.AppointmentFilters
	var ok bool
	if filters.PatientID, ok = handler.QueryID(c, "patient_id"); !ok {
		return
	}
	if filters.DoctorID, ok = handler.QueryID(c, "doctor_id"); !ok {
		return
	}
	if filters.StaffID, ok = handler.QueryID(c, "staff_id"); !ok {
		return
	}
	if room := c.Query("room_number"); room != "" {
		filters.RoomNumber = &room
	}
	if date := c.Query("date"); date != "" {
		d, err := model.NormalizeDate(date)
		if err != nil {
			httputil.RespondWithBadRequest(c, err.Error())
			return
		}
		filters.Date = d
	}
	if clock := c.Query("time"); clock != "" {
		t, err := model.NormalizeTime(clock)
		if err != nil {
			httputil.RespondWithBadRequest(c, err.Error())
			return
		}
		filters.Time = t
	}
	for _, raw := range c.QueryArray("status") {
		st := model.AppointmentStatus(raw)
		if !st.Valid() {
			httputil.RespondWithBadRequest(c, "invalid status "+strconv.Quote(raw))
			return
		}
		filters.Statuses = append(filters.Statuses, st)
	}

	schedule, err := h.service.Schedule(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, schedule)
}

func (h *Handler) MyHistory(c *gin.Context) {
	principal, ok := handler.Principal(c)
	if !ok {
		return
	}
	history, err := h.service.PatientHistory(c.Request.Context(), principal.ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, history)
}

func (h *Handler) Worklist(c *gin.Context) {
	principal, ok := handler.Principal(c)
	if !ok {
		return
	}
	worklist, err := h.service.DoctorWorklist(c.Request.Context(), principal.ID, c.Query("date"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, worklist)
}

// Get returns one appointment. Patients and doctors only see their own.
func (h *Handler) Get(c *gin.Context) {
	principal, ok := handler.Principal(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	apt, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if !owns(principal, apt) {
		httputil.RespondWithError(c, errors.NotFound("appointment"))
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) EligibleStaff(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	staff, err := h.service.EligibleStaff(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, staff)
}

func (h *Handler) Verify(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var req model.VerifyAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	apt, err := h.service.Verify(c.Request.Context(), id, req.StaffID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) Complete(c *gin.Context) {
	principal, ok := handler.Principal(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var req model.CompleteAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	apt, err := h.service.Complete(c.Request.Context(), id, appointment.CompleteRequest{
		TreatmentID: req.TreatmentID,
		Notes:       req.Notes,
		DoctorID:    principal.ID,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

// Cancel is open to the front desk and to the patient who owns the appointment.
func (h *Handler) Cancel(c *gin.Context) {
	principal, ok := handler.Principal(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	if principal.Role == model.RolePatient {
		apt, err := h.service.Get(c.Request.Context(), id)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		if !owns(principal, apt) {
			httputil.RespondWithError(c, errors.NotFound("appointment"))
			return
		}
	}

	apt, err := h.service.Cancel(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) Reschedule(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	result, err := h.service.Reschedule(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, result)
}

// Delete needs ?confirm=true for Completed appointments.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	confirm, _ := strconv.ParseBool(c.Query("confirm"))

	if err := h.service.Delete(c.Request.Context(), id, appointment.DeleteOptions{ConfirmCompleted: confirm}); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"id": id, "deleted": true})
}

func owns(p *model.Principal, apt *model.Appointment) bool {
	switch p.Role {
	case model.RoleAdmin:
		return true
	case model.RolePatient:
		return apt.PatientID == p.ID
	case model.RoleDoctor:
		return apt.DoctorID == p.ID
	}
	return false
}
