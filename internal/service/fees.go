package service

import (
	"math"

	"github.com/ignatzorin/jobmarket-backend/internal/pkg/apperror"
)

// FeeSchedule рассчитывает денежную раскладку оффера по ставкам из
// конфигурации. Раскладка фиксируется в оффере на момент создания:
// смена ставок не влияет на уже отправленные офферы.
type FeeSchedule struct {
	PlatformRate float64
	ServiceRate  float64
}

// Quote — полная раскладка суммы оффера.
type Quote struct {
	Amount           float64
	PlatformFee      float64
	ServiceFee       float64
	ContractorPayout float64
	TotalCharge      float64
}

// Quote считает комиссии от суммы оффера с округлением до копейки.
// Выплата исполнителю выводится вычитанием, а не собственным
// округлением, чтобы сумма частей всегда сходилась с целым.
func (f FeeSchedule) Quote(amount float64) (*Quote, error) {
	if amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма оффера должна быть положительной")
	}

	platformFee := roundKopecks(amount * f.PlatformRate)
	serviceFee := roundKopecks(amount * f.ServiceRate)

	return &Quote{
		Amount:           amount,
		PlatformFee:      platformFee,
		ServiceFee:       serviceFee,
		ContractorPayout: roundKopecks(amount - serviceFee),
		TotalCharge:      roundKopecks(amount + platformFee),
	}, nil
}

// roundKopecks округляет сумму в рублях до копейки.
func roundKopecks(v float64) float64 {
	return math.Round(v*100) / 100
}
