package mocks

//go:generate mockery --name RowSource --srcpkg github.com/farmlink-lab/farm-insights/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
