package vmsim

// coreLibrary is the minimal class library every Runtime starts with: the
// classes the checker binds at Init plus a few common ones for scripts.
var coreLibrary = Universe{Classes: []ClassSpec{
	{
		Name:      "java/lang/Object",
		Modifiers: []string{"public"},
		Methods: []MemberSpec{
			{Name: "<init>", Desc: "()V", Modifiers: []string{"public"}},
			{Name: "hashCode", Desc: "()I", Modifiers: []string{"public"}},
			{Name: "equals", Desc: "(Ljava/lang/Object;)Z", Modifiers: []string{"public"}},
			{Name: "toString", Desc: "()Ljava/lang/String;", Modifiers: []string{"public"}},
		},
	},
	{Name: "java/lang/Class", Modifiers: []string{"public", "final"}},
	{Name: "java/lang/Runnable", Modifiers: []string{"public", "interface", "abstract"},
		Methods: []MemberSpec{{Name: "run", Desc: "()V", Modifiers: []string{"public", "abstract"}}},
	},
	{
		Name:      "java/lang/String",
		Modifiers: []string{"public", "final"},
		Fields: []MemberSpec{
			{Name: "value", Desc: "[C", Modifiers: []string{"private", "final"}},
			{Name: "hash", Desc: "I", Modifiers: []string{"private"}},
		},
		Methods: []MemberSpec{
			{Name: "<init>", Desc: "()V", Modifiers: []string{"public"}},
			{Name: "<init>", Desc: "([C)V", Modifiers: []string{"public"}},
			{Name: "length", Desc: "()I", Modifiers: []string{"public"}},
			{Name: "charAt", Desc: "(I)C", Modifiers: []string{"public"}},
			{Name: "concat", Desc: "(Ljava/lang/String;)Ljava/lang/String;", Modifiers: []string{"public"}},
			{Name: "valueOf", Desc: "(I)Ljava/lang/String;", Modifiers: []string{"public", "static"}},
		},
	},
	{Name: "java/lang/ClassLoader", Modifiers: []string{"public", "abstract"}},
	{
		Name:      "java/lang/Throwable",
		Modifiers: []string{"public"},
		Methods: []MemberSpec{
			{Name: "<init>", Desc: "()V", Modifiers: []string{"public"}},
			{Name: "<init>", Desc: "(Ljava/lang/String;)V", Modifiers: []string{"public"}},
			{Name: "getMessage", Desc: "()Ljava/lang/String;", Modifiers: []string{"public"}},
		},
	},
	{Name: "java/lang/Exception", Super: "java/lang/Throwable", Modifiers: []string{"public"},
		Methods: []MemberSpec{{Name: "<init>", Desc: "(Ljava/lang/String;)V", Modifiers: []string{"public"}}},
	},
	{Name: "java/lang/RuntimeException", Super: "java/lang/Exception", Modifiers: []string{"public"},
		Methods: []MemberSpec{{Name: "<init>", Desc: "(Ljava/lang/String;)V", Modifiers: []string{"public"}}},
	},
	{Name: "java/lang/Number", Modifiers: []string{"public", "abstract"},
		Methods: []MemberSpec{{Name: "intValue", Desc: "()I", Modifiers: []string{"public", "abstract"}}},
	},
	{
		Name:      "java/lang/Integer",
		Super:     "java/lang/Number",
		Modifiers: []string{"public", "final"},
		Fields: []MemberSpec{
			{Name: "MAX_VALUE", Desc: "I", Modifiers: []string{"public", "static", "final"}},
			{Name: "value", Desc: "I", Modifiers: []string{"private", "final"}},
		},
		Methods: []MemberSpec{
			{Name: "<init>", Desc: "(I)V", Modifiers: []string{"public"}},
			{Name: "intValue", Desc: "()I", Modifiers: []string{"public"}},
			{Name: "valueOf", Desc: "(I)Ljava/lang/Integer;", Modifiers: []string{"public", "static"}},
		},
	},
	{Name: "java/io/InputStream", Modifiers: []string{"public", "abstract"}},
	{Name: "java/io/PrintStream", Modifiers: []string{"public"},
		Methods: []MemberSpec{{Name: "println", Desc: "(Ljava/lang/String;)V", Modifiers: []string{"public"}}},
	},
	{
		Name:      "java/lang/System",
		Modifiers: []string{"public", "final"},
		Fields: []MemberSpec{
			{Name: "in", Desc: "Ljava/io/InputStream;", Modifiers: []string{"public", "static", "final"}},
			{Name: "out", Desc: "Ljava/io/PrintStream;", Modifiers: []string{"public", "static", "final"}},
			{Name: "err", Desc: "Ljava/io/PrintStream;", Modifiers: []string{"public", "static", "final"}},
		},
		Methods: []MemberSpec{
			{Name: "currentTimeMillis", Desc: "()J", Modifiers: []string{"public", "static"}},
		},
	},
	{Name: "java/lang/reflect/AccessibleObject", Modifiers: []string{"public"}},
	{Name: "java/lang/reflect/Field", Super: "java/lang/reflect/AccessibleObject", Modifiers: []string{"public", "final"}},
	{Name: "java/lang/reflect/Method", Super: "java/lang/reflect/AccessibleObject", Modifiers: []string{"public", "final"}},
	{Name: "java/lang/reflect/Constructor", Super: "java/lang/reflect/AccessibleObject", Modifiers: []string{"public", "final"}},
	{Name: "java/nio/Buffer", Modifiers: []string{"public", "abstract"}},
	{Name: "java/nio/ByteBuffer", Super: "java/nio/Buffer", Modifiers: []string{"public", "abstract"}},
	{Name: "java/nio/DirectByteBuffer", Super: "java/nio/ByteBuffer", Modifiers: []string{"final"}},
}}
