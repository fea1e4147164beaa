package dal

import (
	"gorm.io/gen"
	"gorm.io/gorm"

	"github.com/utrading/utrading-limit-relayer/internal/models"
)

// GenExecute 生成 gorm-gen 查询代码（基础表名，运行期通过 Table() 切换到分表）
// 命令使用: go run cmd/gen/main.go
func GenExecute(outPath string, conn *gorm.DB) {
	g := gen.NewGenerator(gen.Config{
		OutPath: outPath,
		Mode:    gen.WithoutContext | gen.WithDefaultQuery | gen.WithQueryInterface,
	})

	g.UseDB(conn)

	g.ApplyBasic(
		models.LimitOrder{},
		models.ExecutedOrder{},
		models.OrderCounter{},
	)

	g.Execute()
}
