package api

import (
	"context"
	"net/http"
	"time"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// startDateLayout формат даты старта пакета в запросах.
const startDateLayout = time.DateOnly

type PackageHandler struct {
	packageSvs PackageServicer
}

func NewPackageHandler(packageSvs PackageServicer) *PackageHandler {
	return &PackageHandler{
		packageSvs: packageSvs,
	}
}

type PackageParams struct {
	Title          string          `binding:"required,max_bytes=255"       json:"title"`
	Description    string          `binding:"max_bytes=4096"               json:"description"`
	Cost           decimal.Decimal `json:"cost"`
	DurationMonths int64           `binding:"required,min=1"               json:"durationMonths"`
	StartDate      string          `binding:"required,datetime=2006-01-02" json:"startDate"`
	Units          int64           `binding:"required,min=1"               json:"units"`
	ROI            decimal.Decimal `json:"roi"`
}

func (p PackageParams) toArgs() (service.PackageArgs, error) {
	startDate, err := time.Parse(startDateLayout, p.StartDate)
	if err != nil {
		return service.PackageArgs{}, domain.NewValidationError(map[string]string{"startDate": "invalid date"})
	}
	return service.PackageArgs{
		Title:          p.Title,
		Description:    p.Description,
		Cost:           p.Cost,
		DurationMonths: p.DurationMonths,
		StartDate:      startDate,
		Units:          p.Units,
		ROI:            p.ROI,
	}, nil
}

type PackageResponse struct {
	ID             int64           `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Cost           decimal.Decimal `json:"cost"`
	DurationMonths int64           `json:"durationMonths"`
	StartDate      string          `json:"startDate"`
	Units          int64           `json:"units"`
	UnitsLeft      int64           `json:"unitsLeft"`
	ROI            decimal.Decimal `json:"roi"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func newPackageResponse(p *domain.Package) PackageResponse {
	return PackageResponse{
		ID:             p.ID,
		Title:          p.Title,
		Description:    p.Description,
		Cost:           p.Cost,
		DurationMonths: p.DurationMonths,
		StartDate:      p.StartDate.Format(startDateLayout),
		Units:          p.Units,
		UnitsLeft:      p.UnitsLeft,
		ROI:            p.ROI,
		CreatedAt:      p.CreatedAt,
	}
}

// Index GET RouteGroup + PackageRoute.
func (h *PackageHandler) Index(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	packages, err := h.packageSvs.List(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}

	response := make([]PackageResponse, len(packages))
	for i := range packages {
		response[i] = newPackageResponse(&packages[i])
	}
	c.JSON(http.StatusOK, response)
}

// Show GET RouteGroup + PackageRoute/:id.
func (h *PackageHandler) Show(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	pkg, err := h.packageSvs.Get(ctx, id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPackageResponse(pkg))
}

// Create POST RouteGroup + PackageRoute. Только для админа.
func (h *PackageHandler) Create(c *gin.Context) {
	args, ok := h.bindPackage(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	pkg, err := h.packageSvs.Create(ctx, args)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newPackageResponse(pkg))
}

// Update PUT RouteGroup + PackageRoute/:id. Только для админа.
func (h *PackageHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	args, ok := h.bindPackage(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	pkg, err := h.packageSvs.Update(ctx, id, args)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPackageResponse(pkg))
}

// Delete DELETE RouteGroup + PackageRoute/:id. Только для админа.
func (h *PackageHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	if err := h.packageSvs.Delete(ctx, id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PackageHandler) bindPackage(c *gin.Context) (service.PackageArgs, bool) {
	var params PackageParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return service.PackageArgs{}, false
	}
	args, err := params.toArgs()
	if err != nil {
		abortWithError(c, err)
		return service.PackageArgs{}, false
	}
	return args, true
}
