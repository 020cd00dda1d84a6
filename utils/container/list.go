package container

import (
	"fmt"
	"log"
)

// ListNode 双向链表中的节点
// 功能：表示双向链表中的一个节点，包含键值与值
// 说明：S为排序键，FIFO用法中可为任意值
type ListNode[T any] struct {
	parent     *List[T]     // 所属链表
	prev, next *ListNode[T] // 前驱和后继节点
	S          float64      // 键值（通常是距离）
	Value      T            // 主要值
}

func (n *ListNode[T]) String() string {
	return fmt.Sprintf("Node{Key:%v, Value:%+v}", n.S, n.Value)
}

// Prev 获取节点的前一个节点，第一个节点返回nil
func (n *ListNode[T]) Prev() *ListNode[T] {
	return n.prev
}

// Next 获取节点的下一个节点，最后一个节点返回nil
func (n *ListNode[T]) Next() *ListNode[T] {
	return n.next
}

// Parent 获取节点所在的链表
func (n *ListNode[T]) Parent() *List[T] {
	return n.parent
}

// InsertBefore 在节点前插入新节点
// 参数：add-要插入的新节点
// 算法说明：
// 1. 检查新节点是否已经在其他链表中
// 2. 设置新节点的父链表和前后指针
// 3. 更新当前节点和前驱节点的指针
// 4. 如果新节点是第一个节点，更新链表头指针
func (n *ListNode[T]) InsertBefore(add *ListNode[T]) {
	if add.parent != nil {
		log.Panic("push back node who already in list")
	}
	add.parent = n.parent
	add.next = n
	add.prev = n.prev
	n.prev = add
	if add.prev != nil {
		add.prev.next = add
	} else {
		add.parent.head = add
	}
	n.parent.length++
}

// InsertAfter 在节点后插入新节点
// 参数：add-要插入的新节点
func (n *ListNode[T]) InsertAfter(add *ListNode[T]) {
	if add.parent != nil {
		log.Panic("push back node who already in list")
	}
	add.parent = n.parent
	add.prev = n
	add.next = n.next
	n.next = add
	if add.next != nil {
		add.next.prev = add
	} else {
		add.parent.tail = add
	}
	n.parent.length++
}

// List 双向链表
// 功能：通用双向链表，既可作为FIFO队列，也可按键值有序插入
type List[T any] struct {
	ID         string       // 链表标识符
	head, tail *ListNode[T] // 头尾节点指针
	length     int          // 链表长度
}

func (l *List[T]) String() string {
	return fmt.Sprintf("List{ID:%v}", l.ID)
}

// Keys 获取所有节点的键值
func (l *List[T]) Keys() []float64 {
	keys := make([]float64, l.length)
	for i, node := 0, l.head; node != nil; i, node = i+1, node.next {
		keys[i] = node.S
	}
	return keys
}

// Values 获取所有节点的值
func (l *List[T]) Values() []T {
	values := make([]T, l.length)
	for i, node := 0, l.head; node != nil; i, node = i+1, node.next {
		values[i] = node.Value
	}
	return values
}

// Len 获取链表长度
func (l *List[T]) Len() int {
	return l.length
}

// PushFront 向链表头部插入节点
func (l *List[T]) PushFront(add *ListNode[T]) {
	if add.parent != nil {
		log.Panic("push back node who already in list")
	}
	add.next = nil
	add.prev = nil
	if l.head == nil {
		add.parent = l
		l.head = add
		l.tail = add
		l.length++
	} else {
		// length++和add.parent在InsertBefore中处理
		l.head.InsertBefore(add)
	}
}

// PushBack 向链表尾部插入节点
func (l *List[T]) PushBack(add *ListNode[T]) {
	if add.parent != nil {
		log.Panic("push back node who already in list")
	}
	add.next = nil
	add.prev = nil
	if l.tail == nil {
		add.parent = l
		l.head = add
		l.tail = add
		l.length++
	} else {
		// length++和add.parent在InsertAfter中处理
		l.tail.InsertAfter(add)
	}
}

// InsertSorted 按键值升序插入节点
// 说明：键值相同时插在已有节点之后，保持插入顺序
func (l *List[T]) InsertSorted(add *ListNode[T]) {
	node := l.head
	for node != nil && node.S <= add.S {
		node = node.next
	}
	if node != nil {
		node.InsertBefore(add)
	} else {
		l.PushBack(add)
	}
}

// Remove 从链表中移除节点
// 参数：node-要删除的节点，必须属于当前链表
func (l *List[T]) Remove(node *ListNode[T]) {
	if node.parent != l {
		log.Panic("remove node from wrong list")
	}
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
	node.parent = nil
	l.length--
}

// Index 节点在链表中的位置，不属于当前链表返回-1
func (l *List[T]) Index(node *ListNode[T]) int {
	if node == nil || node.parent != l {
		return -1
	}
	i := 0
	for n := l.head; n != node; n = n.next {
		i++
	}
	return i
}

// First 获取链表头部节点，空链表返回nil
func (l *List[T]) First() *ListNode[T] {
	return l.head
}

// Last 获取链表尾部节点，空链表返回nil
func (l *List[T]) Last() *ListNode[T] {
	return l.tail
}
