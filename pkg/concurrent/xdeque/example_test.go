package xdeque_test

import (
	"fmt"

	"github.com/omeyang/taskkit/pkg/concurrent/xdeque"
)

func ExampleNew() {
	d := xdeque.New[string]()

	d.Push("oldest")
	d.Push("middle")
	d.Push("newest")

	// owner 端后进先出
	v, _ := d.TryPop()
	fmt.Println("owner popped:", v)

	// thief 端窃取最早入队的元素
	v, _ = d.TrySteal()
	fmt.Println("thief stole:", v)
	// Output:
	// owner popped: newest
	// thief stole: oldest
}
