package scheduling

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthmed/healthmed/internal/platform/auth"
	"github.com/healthmed/healthmed/pkg/apperror"
	"github.com/healthmed/healthmed/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	agendaGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleAdministrator))
	agendaGroup.GET("/slots", h.ListSlots)
	agendaGroup.POST("/slots", h.CreateSlot)
	agendaGroup.PUT("/slots/:id", h.UpdateSlot)
	api.DELETE("/slots/:id", h.DeleteSlot, auth.RequireRole(auth.RoleAdministrator))

	bookingGroup := api.Group("", auth.RequireRole(auth.RolePatient, auth.RoleAdministrator))
	bookingGroup.GET("/slots/available", h.SearchAvailable)
	bookingGroup.GET("/doctors/available", h.DoctorsWithAvailability)
	bookingGroup.POST("/appointments", h.Book)
	bookingGroup.PUT("/appointments/:id/cancel", h.Cancel)

	readGroup := api.Group("", auth.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleAdministrator))
	readGroup.GET("/appointments", h.ListAppointments)
	readGroup.GET("/appointments/:id", h.GetAppointment)

	api.PUT("/appointments/:id/status", h.Decide, auth.RequireRole(auth.RoleDoctor, auth.RoleAdministrator))
	api.PUT("/appointments/:id", h.UpdateAppointment, auth.RequireRole(auth.RoleAdministrator))
	api.DELETE("/appointments/:id", h.DeleteAppointment, auth.RequireRole(auth.RoleAdministrator))
}

func httpError(err error) error {
	return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
}

func principal(c echo.Context) (auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return auth.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	return p, nil
}

// -- Slots --

func (h *Handler) CreateSlot(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var in NewSlot
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	slot, err := h.svc.CreateSlot(c.Request().Context(), p, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, slot)
}

func (h *Handler) ListSlots(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)

	var doctorID *uuid.UUID
	if raw := c.QueryParam("doctor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
		doctorID = &id
	}

	slots, total, err := h.svc.ListSlots(c.Request().Context(), p, doctorID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(slots, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var patch SlotPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	slot, err := h.svc.UpdateSlot(c.Request().Context(), id, patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, slot)
}

func (h *Handler) DeleteSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteSlot(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "slot deleted"})
}

func availabilityFilter(c echo.Context) (AvailabilityFilter, error) {
	f := AvailabilityFilter{
		Name:      c.QueryParam("name"),
		Specialty: c.QueryParam("specialty"),
		CRM:       c.QueryParam("crm"),
	}
	if raw := c.QueryParam("doctor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
		f.DoctorID = &id
	}
	return f, nil
}

func (h *Handler) SearchAvailable(c echo.Context) error {
	pg := pagination.FromContext(c)
	f, err := availabilityFilter(c)
	if err != nil {
		return err
	}
	slots, total, err := h.svc.SearchAvailable(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(slots, total, pg.Limit, pg.Offset))
}

func (h *Handler) DoctorsWithAvailability(c echo.Context) error {
	pg := pagination.FromContext(c)
	f, err := availabilityFilter(c)
	if err != nil {
		return err
	}
	doctors, total, err := h.svc.DoctorsWithAvailability(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(doctors, total, pg.Limit, pg.Offset))
}

// -- Appointments --

func (h *Handler) Book(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var in NewAppointment
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	appt, err := h.svc.Book(c.Request().Context(), p, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":     "appointment booked",
		"appointment": appt,
	})
}

func (h *Handler) ListAppointments(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)

	var status *Status
	if raw := c.QueryParam("status"); raw != "" {
		parsed, err := ParseStatus(raw)
		if err != nil {
			return httpError(err)
		}
		status = &parsed
	}

	appts, total, err := h.svc.List(c.Request().Context(), p, status, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetAppointment(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	appt, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

type decisionRequest struct {
	Decision string `json:"decision"`
}

func (h *Handler) Decide(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req decisionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	appt, err := h.svc.Decide(c.Request().Context(), p, id, req.Decision)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":     "appointment " + string(appt.Status),
		"appointment": appt,
	})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Cancel(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	appt, err := h.svc.Cancel(c.Request().Context(), p, id, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":     "appointment cancelled",
		"appointment": appt,
	})
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var patch AppointmentPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	appt, err := h.svc.Update(c.Request().Context(), id, patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "appointment deleted"})
}
