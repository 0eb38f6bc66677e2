package domain

// Version — монотонно растущий номер события в журнале платежа.
// Используется и как порядковый номер события, и как токен optimistic
// concurrency: запись в журнал обязана указать версию, следующую за
// последней наблюдаемой писателем.
type Version uint64

// Next возвращает следующую версию.
func (v Version) Next() Version {
	return v + 1
}

// MaxRetries — максимальное число повторных попыток авторизации.
const MaxRetries = 1

// Attempt — счётчик повторных попыток авторизации.
// Инвариант: 0 <= attempt <= MaxRetries.
type Attempt int

// CanRetry возвращает true, если лимит повторов ещё не исчерпан.
func (a Attempt) CanRetry() bool {
	return int(a) < MaxRetries
}

// Next возвращает следующий счётчик попыток.
func (a Attempt) Next() Attempt {
	return a + 1
}

// DidRetry возвращает true после хотя бы одного повтора.
func (a Attempt) DidRetry() bool {
	return a > 0
}

// Reference возвращает внешнюю ссылку попытки: базовая ссылка авторизации,
// после повтора — с суффиксом "R".
func (a Attempt) Reference(base string) string {
	if a.DidRetry() {
		return base + "R"
	}
	return base
}
