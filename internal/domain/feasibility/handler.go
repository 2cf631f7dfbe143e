package feasibility

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/alexanderkiel/flare/internal/domain/mapping"
	"github.com/alexanderkiel/flare/internal/domain/sq"
	"github.com/alexanderkiel/flare/internal/platform/datastore"
	"github.com/alexanderkiel/flare/internal/platform/fhir"
)

// MIMEStructuredQuery is the media type of structured queries.
const MIMEStructuredQuery = "application/sq+json"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/execute", h.Execute)
	g.POST("/translate", h.Translate)
}

func (h *Handler) Execute(c echo.Context) error {
	q, err := readQuery(c)
	if err != nil {
		return errorResponse(c, err)
	}
	count, err := h.svc.Execute(c.Request().Context(), q)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, count)
}

func (h *Handler) Translate(c echo.Context) error {
	q, err := readQuery(c)
	if err != nil {
		return errorResponse(c, err)
	}
	t, err := h.svc.Translate(c.Request().Context(), q)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

var errUnsupportedMediaType = errors.New("unsupported media type")

func readQuery(c echo.Context) (sq.StructuredQuery, error) {
	mediaType, _, err := mime.ParseMediaType(c.Request().Header.Get(echo.HeaderContentType))
	if err != nil || (mediaType != MIMEStructuredQuery && mediaType != echo.MIMEApplicationJSON) {
		return sq.StructuredQuery{}, errUnsupportedMediaType
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return sq.StructuredQuery{}, err
	}
	return sq.Parse(body)
}

// errorResponse writes err as an OperationOutcome with a status matching its
// kind.
func errorResponse(c echo.Context, err error) error {
	var (
		ve *sq.ValidationError
		nf *mapping.NotFoundError
		qe *datastore.QueryExecutionError
		he *echo.HTTPError
	)
	switch {
	case errors.As(err, &he):
		return he
	case errors.Is(err, errUnsupportedMediaType):
		return c.JSON(http.StatusUnsupportedMediaType,
			fhir.NotSupportedOutcome("expected content type "+MIMEStructuredQuery+" or "+echo.MIMEApplicationJSON))
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, fhir.ValidationOutcome(ve.Field, ve.Message))
	case errors.As(err, &nf):
		return c.JSON(http.StatusUnprocessableEntity, fhir.NewOperationOutcome(
			fhir.IssueSeverityError, fhir.IssueTypeNotFound, nf.Error()))
	case errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusGatewayTimeout, fhir.TimeoutOutcome(err.Error()))
	case errors.As(err, &qe):
		code := fhir.IssueTypeProcessing
		if qe.Temporary() {
			code = fhir.IssueTypeTransient
		}
		return c.JSON(http.StatusBadGateway, fhir.NewOperationOutcome(fhir.IssueSeverityError, code, qe.Error()))
	default:
		return c.JSON(http.StatusInternalServerError, fhir.InternalErrorOutcome(err.Error()))
	}
}
