package pgrepo

import (
	"context"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/repository/repoargs"
	"github.com/fsdevblog/peerinvest/pkg/uow"
	"github.com/jackc/pgx/v5"
)

const packageColumns = `id, created_at, updated_at, title, description, cost, duration_months, start_date, units,
	units_left, roi`

type PackageRepository struct {
	conn uow.DBTX
}

func NewPackageRepository(conn uow.DBTX) *PackageRepository {
	return &PackageRepository{conn: conn}
}

// Create создает пакет, остаток юнитов равен общему количеству. Дубликат заголовка - domain.ErrDuplicateKey.
func (p *PackageRepository) Create(ctx context.Context, args repoargs.CreatePackage) (*domain.Package, error) {
	row := p.conn.QueryRow(ctx, `
		INSERT INTO packages (title, description, cost, duration_months, start_date, units, units_left, roi)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		RETURNING `+packageColumns,
		args.Title, args.Description, args.Cost, args.DurationMonths, args.StartDate, args.Units, args.ROI,
	)
	pkg, err := scanPackage(row)
	if err != nil {
		return nil, convertErr(err, "creating package `%s`", args.Title)
	}
	return pkg, nil
}

// Update обновляет условия пакета. Изменение общего количества юнитов сдвигает остаток на ту же величину.
// Если остаток ушел бы в минус - строка не обновляется и возвращается domain.ErrRecordNotFound, вызывающая сторона
// различает отсутствие пакета и нехватку юнитов повторным чтением.
func (p *PackageRepository) Update(ctx context.Context, args repoargs.UpdatePackage) (*domain.Package, error) {
	row := p.conn.QueryRow(ctx, `
		UPDATE packages
		SET title           = $2,
		    description     = $3,
		    cost            = $4,
		    duration_months = $5,
		    start_date      = $6,
		    units_left      = units_left + ($7 - units),
		    units           = $7,
		    roi             = $8,
		    updated_at      = now()
		WHERE id = $1
		  AND units_left + ($7 - units) >= 0
		RETURNING `+packageColumns,
		args.ID, args.Title, args.Description, args.Cost, args.DurationMonths, args.StartDate, args.Units, args.ROI,
	)
	pkg, err := scanPackage(row)
	if err != nil {
		return nil, convertErr(err, "updating package with id %d", args.ID)
	}
	return pkg, nil
}

// Delete удаляет пакет. Пакет с инвестициями удалить нельзя - domain.ErrForeignKey.
func (p *PackageRepository) Delete(ctx context.Context, id int64) error {
	tag, err := p.conn.Exec(ctx, `DELETE FROM packages WHERE id = $1`, id)
	if err != nil {
		return convertErr(err, "deleting package with id %d", id)
	}
	if tag.RowsAffected() == 0 {
		return convertErr(pgx.ErrNoRows, "deleting package with id %d", id)
	}
	return nil
}

func (p *PackageRepository) FindByID(ctx context.Context, id int64) (*domain.Package, error) {
	row := p.conn.QueryRow(ctx, `SELECT `+packageColumns+` FROM packages WHERE id = $1`, id)
	pkg, err := scanPackage(row)
	if err != nil {
		return nil, convertErr(err, "finding package by id %d", id)
	}
	return pkg, nil
}

// List возвращает все пакеты, отсортированные по дате старта.
func (p *PackageRepository) List(ctx context.Context) ([]domain.Package, error) {
	rows, err := p.conn.Query(ctx, `SELECT `+packageColumns+` FROM packages ORDER BY start_date, id`)
	if err != nil {
		return nil, convertErr(err, "listing packages")
	}
	defer rows.Close()

	var packages = make([]domain.Package, 0)
	for rows.Next() {
		pkg, scanErr := scanPackage(rows)
		if scanErr != nil {
			return nil, convertErr(scanErr, "scanning package")
		}
		packages = append(packages, *pkg)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, convertErr(rowsErr, "listing packages")
	}
	return packages, nil
}

// Reserve атомарно списывает units юнитов, только если их хватает. Условие проверяется в самом UPDATE,
// поэтому конкурентные покупки не могут продать больше, чем есть. Если строка не обновилась - возвращается
// domain.ErrRecordNotFound: пакета нет или юнитов недостаточно.
func (p *PackageRepository) Reserve(ctx context.Context, id int64, units int64) (int64, error) {
	var unitsLeft int64
	err := p.conn.QueryRow(ctx, `
		UPDATE packages
		SET units_left = units_left - $2,
		    updated_at = now()
		WHERE id = $1
		  AND units_left >= $2
		RETURNING units_left`,
		id, units,
	).Scan(&unitsLeft)
	if err != nil {
		return 0, convertErr(err, "reserving %d units of package %d", units, id)
	}
	return unitsLeft, nil
}

// Release атомарно возвращает units юнитов. Верхнюю границу (units_left <= units) стережет CHECK ограничение,
// его нарушение - domain.ErrCheckViolation.
func (p *PackageRepository) Release(ctx context.Context, id int64, units int64) (int64, error) {
	var unitsLeft int64
	err := p.conn.QueryRow(ctx, `
		UPDATE packages
		SET units_left = units_left + $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING units_left`,
		id, units,
	).Scan(&unitsLeft)
	if err != nil {
		return 0, convertErr(err, "releasing %d units of package %d", units, id)
	}
	return unitsLeft, nil
}

func scanPackage(row pgx.Row) (*domain.Package, error) {
	var pkg domain.Package
	if err := row.Scan(
		&pkg.ID,
		&pkg.CreatedAt,
		&pkg.UpdatedAt,
		&pkg.Title,
		&pkg.Description,
		&pkg.Cost,
		&pkg.DurationMonths,
		&pkg.StartDate,
		&pkg.Units,
		&pkg.UnitsLeft,
		&pkg.ROI,
	); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &pkg, nil
}
