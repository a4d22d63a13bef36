// Package cart реализует корзину текущего клиента.
package cart

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/mmeshcher/pos-order-system/internal/model"
)

// Cart хранит позиции корзины по названию блюда.
// Итоговая сумма никогда не кэшируется и всегда вычисляется по позициям.
type Cart struct {
	mu    sync.Mutex
	lines map[string]*model.CartLine
}

// New создаёт пустую корзину.
func New() *Cart {
	return &Cart{
		lines: make(map[string]*model.CartLine),
	}
}

// AddItem добавляет блюдо в корзину: существующей позиции увеличивает
// количество на единицу, отсутствующую создаёт с количеством один.
func (c *Cart) AddItem(name string, price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if line, ok := c.lines[name]; ok {
		line.Qty++
		return
	}
	c.lines[name] = &model.CartLine{Name: name, Price: price, Qty: 1}
}

// Increment увеличивает количество позиции на единицу.
// Отсутствующая позиция игнорируется.
func (c *Cart) Increment(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if line, ok := c.lines[name]; ok {
		line.Qty++
	}
}

// Decrement уменьшает количество позиции на единицу; при количестве
// ноль или меньше позиция удаляется целиком.
func (c *Cart) Decrement(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	line, ok := c.lines[name]
	if !ok {
		return
	}
	line.Qty--
	if line.Qty <= 0 {
		delete(c.lines, name)
	}
}

// SetQuantity устанавливает количество позиции из «сырого» пользовательского
// значения. Значение, не являющееся целым положительным числом, удаляет
// позицию без ошибки: некорректный ввод трактуется как удаление.
func (c *Cart) SetQuantity(name string, rawValue string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.lines[name]; !ok {
		return
	}

	qty, err := strconv.Atoi(strings.TrimSpace(rawValue))
	if err != nil || qty <= 0 {
		delete(c.lines, name)
		return
	}

	c.lines[name].Qty = qty
}

// Total возвращает сумму по всем позициям корзины.
func (c *Cart) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total float64
	for _, line := range c.lines {
		total += line.Price * float64(line.Qty)
	}
	return total
}

// Lines возвращает копию позиций корзины, упорядоченных по названию.
func (c *Cart) Lines() []model.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines := make([]model.CartLine, 0, len(c.lines))
	for _, line := range c.lines {
		lines = append(lines, *line)
	}

	sort.Slice(lines, func(i, j int) bool {
		return lines[i].Name < lines[j].Name
	})

	return lines
}

// Len возвращает число позиций в корзине.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

// Clear опустошает корзину. Вызывается только после успешного оформления заказа.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = make(map[string]*model.CartLine)
}
