package uniqueid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	assert.Equal(t, "ray_soma_k00lrav_gmail_com", Generate("k00lrav@gmail.com", "Ray", "Soma"))
}

func TestGenerate_Deterministic(t *testing.T) {
	first := Generate("tech@example.com", "Jane", "Doe")
	second := Generate("tech@example.com", "Jane", "Doe")
	assert.Equal(t, first, second)
}

func TestGenerate_SpecialCharacters(t *testing.T) {
	assert.Equal(t, "mary_ann_o_neil_m_a_mail_ru", Generate("m.a@mail.ru", "Mary-Ann", "O'Neil"))
}

func TestGenerate_EmptyNames(t *testing.T) {
	assert.Equal(t, "user_example_com", Generate("user@example.com", "", ""))
}

func TestGenerate_TrimsSpaces(t *testing.T) {
	assert.Equal(t, "ray_soma_k00lrav_gmail_com", Generate(" k00lrav@gmail.com ", " Ray ", " Soma "))
}
