package telegram

import (
	"github.com/suspectuso/gpt-gateway/internal/auth"
	"github.com/suspectuso/gpt-gateway/internal/ledger"
)

const (
	hiMsg           = "Добро пожаловать!"
	closeMsg        = "Ходу нет!"
	alreadyMsg      = "И снова добрый день!"
	invalidCodeMsg  = "Невалидный код"
	exhaustedMsg    = "Код не действителен"
	cleanedMsg      = "Контекст очищен"
	paymentsOffMsg  = "Пополнение временно недоступно"
	balanceMsgStart = "Баланс: "
)

func registerReply(out auth.Outcome) string {
	switch out {
	case auth.Welcomed:
		return hiMsg
	case auth.AlreadyRegistered:
		return alreadyMsg
	case auth.NoCode:
		return closeMsg
	case auth.InvalidCode:
		return invalidCodeMsg
	default:
		return exhaustedMsg
	}
}

func balanceReply(balance int64) string {
	return balanceMsgStart + ledger.Format(balance)
}

func paymentReply(total int) string {
	return "Платеж на сумму " + ledger.FormatPayment(total) + " прошел успешно!"
}
