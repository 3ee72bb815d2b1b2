package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"taskflow/internal/model"
)

type EmployeeRepository struct {
	db *gorm.DB
}

type EmployeeRepositoryInterface interface {
	Create(ctx context.Context, employee *model.Employee) error
	FindByEmail(ctx context.Context, email string) (*model.Employee, error)
	GetByID(ctx context.Context, id int64) (*model.Employee, error)
	ResolveName(ctx context.Context, id int64) (string, error)
}

var _ EmployeeRepositoryInterface = (*EmployeeRepository)(nil)

func NewEmployeeRepository(db *gorm.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

func (r *EmployeeRepository) Create(ctx context.Context, employee *model.Employee) error {
	return r.db.WithContext(ctx).Create(employee).Error
}

func (r *EmployeeRepository) FindByEmail(ctx context.Context, email string) (*model.Employee, error) {
	var employee model.Employee
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&employee).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &employee, nil
}

func (r *EmployeeRepository) GetByID(ctx context.Context, id int64) (*model.Employee, error) {
	var employee model.Employee
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&employee).Error
	if err != nil {
		return nil, notFound(err, "employee %d", id)
	}
	return &employee, nil
}

// ResolveName returns the display name of the employee.
func (r *EmployeeRepository) ResolveName(ctx context.Context, id int64) (string, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&model.Employee{}).
		Where("id = ?", id).
		Limit(1).
		Pluck("name", &names).Error
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", notFound(gorm.ErrRecordNotFound, "employee %d", id)
	}
	return names[0], nil
}
