package clinic

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/appointment"
	"github.com/jwalitptl/clinic-api/internal/service/clinic"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

// Handler serves the clinic registry: doctors, staff, rooms and treatments.
type Handler struct {
	service      *clinic.Service
	appointments *appointment.Service
}

func NewHandler(service *clinic.Service, appointments *appointment.Service) *Handler {
	return &Handler{service: service, appointments: appointments}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	admin := auth.RequireRole(model.RoleAdmin)
	anyone := auth.RequireRole(model.RoleAdmin, model.RolePatient, model.RoleDoctor)

	doctors := r.Group("/doctors")
	{
		doctors.GET("", anyone, h.ListDoctors)
		doctors.GET("/:id", anyone, h.GetDoctor)
		doctors.POST("", admin, h.CreateDoctor)
		doctors.PUT("/:id", admin, h.UpdateDoctor)
		doctors.DELETE("/:id", admin, h.DeleteDoctor)
	}

	staff := r.Group("/staff", admin)
	{
		staff.GET("", h.ListStaff)
		staff.POST("", h.CreateStaff)
		staff.DELETE("/:id", h.DeleteStaff)
	}

	rooms := r.Group("/rooms", admin)
	{
		rooms.GET("", h.ListRooms)
		rooms.POST("", h.CreateRoom)
		rooms.GET("/:number", h.GetRoom)
		rooms.GET("/:number/availability", h.RoomAvailability)
		rooms.DELETE("/:number", h.DeleteRoom)
	}

	treatments := r.Group("/treatments", anyone)
	{
		treatments.GET("", h.ListTreatments)
		treatments.GET("/:id", h.GetTreatment)
	}
}

func (h *Handler) CreateDoctor(c *gin.Context) {
	var req model.CreateDoctorRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	doctor, err := h.service.CreateDoctor(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, doctor)
}

func (h *Handler) GetDoctor(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	doctor, err := h.service.GetDoctor(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, doctor)
}

func (h *Handler) UpdateDoctor(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateDoctorRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	doctor, err := h.service.UpdateDoctor(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, doctor)
}

func (h *Handler) DeleteDoctor(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteDoctor(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"id": id, "deleted": true})
}

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.service.ListDoctors(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, doctors)
}

func (h *Handler) CreateStaff(c *gin.Context) {
	var req model.CreateStaffRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	staff, err := h.service.CreateStaff(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, staff)
}

func (h *Handler) DeleteStaff(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteStaff(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"id": id, "deleted": true})
}

func (h *Handler) ListStaff(c *gin.Context) {
	staff, err := h.service.ListStaff(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, staff)
}

func (h *Handler) CreateRoom(c *gin.Context) {
	var req model.CreateRoomRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	room, err := h.service.CreateRoom(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, room)
}

func (h *Handler) GetRoom(c *gin.Context) {
	room, err := h.service.GetRoom(c.Request.Context(), c.Param("number"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, room)
}

// RoomAvailability answers whether a room is free at ?date=&time=.
func (h *Handler) RoomAvailability(c *gin.Context) {
	availability, err := h.appointments.RoomAvailability(c.Request.Context(), c.Param("number"), c.Query("date"), c.Query("time"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, availability)
}

func (h *Handler) DeleteRoom(c *gin.Context) {
	number := c.Param("number")
	if err := h.service.DeleteRoom(c.Request.Context(), number); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"room_number": number, "deleted": true})
}

func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.service.ListRooms(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, rooms)
}

func (h *Handler) ListTreatments(c *gin.Context) {
	treatments, err := h.service.ListTreatments(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, treatments)
}

func (h *Handler) GetTreatment(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	t, err := h.service.GetTreatment(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, t)
}
